package scheduler

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/grumpy-generator/signal-intel/internal/config"
	"github.com/grumpy-generator/signal-intel/internal/models"
	"github.com/grumpy-generator/signal-intel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	digests []*models.Digest
	err     error
}

func (n *recordingNotifier) SendDigest(d *models.Digest) error {
	n.digests = append(n.digests, d)
	return n.err
}

type recordingArchive struct {
	files map[string][]byte
	err   error
}

func newRecordingArchive() *recordingArchive {
	return &recordingArchive{files: make(map[string][]byte)}
}

func (a *recordingArchive) Store(filename string, data []byte) error {
	if a.err != nil {
		return a.err
	}
	a.files[filename] = data
	return nil
}

func (a *recordingArchive) Retrieve(filename string) ([]byte, error) {
	return a.files[filename], nil
}

func (a *recordingArchive) List(prefix string) ([]string, error) {
	var names []string
	for name := range a.files {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (a *recordingArchive) Delete(filename string) error {
	delete(a.files, filename)
	return nil
}

func newTestService(cfg *config.Config) (*Service, *store.Store, *recordingNotifier, *recordingArchive) {
	st := store.New()
	notifier := &recordingNotifier{}
	archive := newRecordingArchive()
	return NewService(cfg, st, notifier, archive), st, notifier, archive
}

func seedCritical(t *testing.T, st *store.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := st.Insert(models.Signal{
			Actor: "seed",
			Text:  "cannot log in at all",
			Classification: models.Classification{
				IntentStage: "frustration",
				Urgency:     models.UrgencyCritical,
			},
		})
		require.NoError(t, err)
	}
}

func TestStartIsNoOpWhenDisabled(t *testing.T) {
	svc, _, _, _ := newTestService(&config.Config{DigestSchedule: "off"})
	require.NoError(t, svc.Start())
	assert.Empty(t, svc.cron.Entries())
	svc.Stop()
}

func TestStartRegistersJobs(t *testing.T) {
	svc, _, _, _ := newTestService(&config.Config{DigestSchedule: "daily"})
	require.NoError(t, svc.Start())
	defer svc.Stop()

	// the digest job plus the urgent check
	assert.Len(t, svc.cron.Entries(), 2)
}

func TestRunDigestDeliversAndArchives(t *testing.T) {
	svc, st, notifier, archive := newTestService(&config.Config{DigestSchedule: "daily"})
	seedCritical(t, st, 2)

	require.NoError(t, svc.RunDigest("daily"))

	require.Len(t, notifier.digests, 1)
	assert.Equal(t, "daily", notifier.digests[0].Period)
	assert.Equal(t, 2, notifier.digests[0].Stats.Critical)

	require.Len(t, archive.files, 1)
	for name, data := range archive.files {
		assert.True(t, strings.HasPrefix(name, "digest-daily-"))
		assert.True(t, strings.HasSuffix(name, ".json"))

		var archived models.Digest
		require.NoError(t, json.Unmarshal(data, &archived))
		assert.Equal(t, "daily", archived.Period)
		assert.Len(t, archived.Signals, 2)
	}
}

func TestRunDigestArchiveFailureDoesNotBlockDelivery(t *testing.T) {
	svc, st, notifier, archive := newTestService(&config.Config{DigestSchedule: "daily"})
	seedCritical(t, st, 1)
	archive.err = errors.New("blob unavailable")

	require.NoError(t, svc.RunDigest("daily"))
	assert.Len(t, notifier.digests, 1)
}

func TestRunDigestSendFailureSurfaces(t *testing.T) {
	svc, _, notifier, _ := newTestService(&config.Config{DigestSchedule: "daily"})
	notifier.err = errors.New("webhook down")

	err := svc.RunDigest("daily")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook down")
}

func TestRunUrgentCheckBelowThreshold(t *testing.T) {
	svc, st, notifier, _ := newTestService(&config.Config{CriticalThreshold: 3})
	seedCritical(t, st, 2)

	require.NoError(t, svc.RunUrgentCheck())
	assert.Empty(t, notifier.digests)
}

func TestRunUrgentCheckAtThreshold(t *testing.T) {
	svc, st, notifier, _ := newTestService(&config.Config{CriticalThreshold: 3})
	seedCritical(t, st, 3)

	require.NoError(t, svc.RunUrgentCheck())
	require.Len(t, notifier.digests, 1)
	assert.Equal(t, "urgent", notifier.digests[0].Period)
}
