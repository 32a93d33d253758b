package providers

import (
	"context"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.CanonEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.CanonEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelAliasChanges carries alias.changed events
	EventChannelAliasChanges = "canon:alias"

	// EventChannelMappingChanges carries mapping.changed events
	EventChannelMappingChanges = "canon:mapping"
)
