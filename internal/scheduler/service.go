package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/grumpy-generator/signal-intel/internal/config"
	"github.com/grumpy-generator/signal-intel/internal/notifications"
	"github.com/grumpy-generator/signal-intel/internal/store"
	"github.com/grumpy-generator/signal-intel/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service schedules review-queue digests and the urgent-signals check.
type Service struct {
	config   *config.Config
	store    *store.Store
	notifier notifications.NotificationInterface
	archive  storage.ArchiveInterface
	cron     *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, st *store.Store, notifier notifications.NotificationInterface, archive storage.ArchiveInterface) *Service {
	return &Service{
		config:   cfg,
		store:    st,
		notifier: notifier,
		archive:  archive,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled digests. With DIGEST_SCHEDULE=off nothing is
// scheduled and the call is a no-op.
func (s *Service) Start() error {
	if s.config.DigestSchedule == "off" {
		logrus.Info("Digest schedule disabled")
		return nil
	}

	var cronExpression string
	switch s.config.DigestSchedule {
	case "daily":
		// Run daily at 9 AM UTC
		cronExpression = "0 0 9 * * *"
	default:
		// Run weekly on Monday at 9 AM UTC
		cronExpression = "0 0 9 * * MON"
	}

	_, err := s.cron.AddFunc(cronExpression, func() {
		logrus.Info("Starting scheduled digest run")
		if err := s.RunDigest(s.config.DigestSchedule); err != nil {
			logrus.Errorf("Scheduled digest run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	// More frequent check for critical signals piling up (every 4 hours)
	_, err = s.cron.AddFunc("0 0 */4 * * *", func() {
		logrus.Info("Starting urgent signals check (4-hour frequency)")
		if err := s.RunUrgentCheck(); err != nil {
			logrus.Errorf("Urgent signals check failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s digest schedule (plus urgent checks every 4 hours)", s.config.DigestSchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}

// RunDigest builds, archives, and delivers one digest.
func (s *Service) RunDigest(period string) error {
	digest := notifications.BuildDigest(s.store, period)

	if err := s.archiveDigest(digest.Period, digest); err != nil {
		// archival failure never blocks delivery
		logrus.Errorf("Failed to archive digest: %v", err)
	}

	if err := s.notifier.SendDigest(digest); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}

	logrus.Infof("Digest delivered: %d pending, %d critical", digest.Stats.Pending, digest.Stats.Critical)
	return nil
}

// RunUrgentCheck delivers an off-schedule digest when enough critical
// signals are waiting.
func (s *Service) RunUrgentCheck() error {
	stats := s.store.Stats()
	if stats.Critical < s.config.CriticalThreshold {
		logrus.Debugf("Urgent check: %d critical signals, below threshold %d", stats.Critical, s.config.CriticalThreshold)
		return nil
	}

	logrus.Infof("Urgent check: %d critical signals pending, sending alert", stats.Critical)
	return s.RunDigest("urgent")
}

func (s *Service) archiveDigest(period string, digest interface{}) error {
	data, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}

	filename := fmt.Sprintf("digest-%s-%s.json", period, time.Now().UTC().Format("2006-01-02-15-04-05"))
	return s.archive.Store(filename, data)
}
