package notifications

import "github.com/grumpy-generator/signal-intel/internal/models"

// NotificationInterface defines the contract for digest delivery
type NotificationInterface interface {
	SendDigest(digest *models.Digest) error
}
