package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NoopArchive discards digests. Used when no storage account is configured.
type NoopArchive struct{}

// Ensure NoopArchive implements ArchiveInterface
var _ ArchiveInterface = (*NoopArchive)(nil)

// NewNoopArchive creates the discarding archive.
func NewNoopArchive() *NoopArchive {
	return &NoopArchive{}
}

func (n *NoopArchive) Store(filename string, data []byte) error {
	logrus.Debugf("Digest archive disabled, dropping %s (%d bytes)", filename, len(data))
	return nil
}

func (n *NoopArchive) Retrieve(filename string) ([]byte, error) {
	return nil, fmt.Errorf("digest archive disabled: %s not available", filename)
}

func (n *NoopArchive) List(prefix string) ([]string, error) {
	return nil, nil
}

func (n *NoopArchive) Delete(filename string) error {
	return nil
}
