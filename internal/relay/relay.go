// Package relay pulls messages from external platforms and feeds them
// through the ingestion gateway. Each relay classifies silently: the
// originating user never sees a reply.
package relay

import "context"

// Relay is a long-running message puller for one platform.
type Relay interface {
	GetName() string
	IsEnabled() bool
	Run(ctx context.Context)
}
