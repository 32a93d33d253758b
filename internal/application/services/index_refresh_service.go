package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
)

// IndexRefresher drops cached recall indexes
type IndexRefresher interface {
	Invalidate(ctx context.Context)
}

// IndexRefreshService keeps the recall index of this instance in step with
// alias and registry changes made elsewhere
type IndexRefreshService struct {
	index    IndexRefresher
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewIndexRefreshService creates a new index refresh service
func NewIndexRefreshService(index IndexRefresher, eventBus providers.EventBus) *IndexRefreshService {
	ctx, cancel := context.WithCancel(context.Background())
	return &IndexRefreshService{
		index:    index,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for alias changes
func (s *IndexRefreshService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelAliasChanges)
	if err != nil {
		return fmt.Errorf("failed to subscribe to alias changes: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Msg("Index refresh service started")
	return nil
}

// Stop stops the index refresh service
func (s *IndexRefreshService) Stop() {
	s.cancel()
	<-s.done
	log.Info().Msg("Index refresh service stopped")
}

func (s *IndexRefreshService) processEvents(eventChan <-chan *entities.CanonEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *IndexRefreshService) handleEvent(event *entities.CanonEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Debug().Str("event_id", event.ID).Str("event_type", string(event.EventType)).
		Str("insurer", event.Insurer).Int64("alias_version", event.AliasVersion).
		Msg("Refreshing recall index")
	s.index.Invalidate(ctx)
}

// PublishRegistryChange notifies every instance that the registry changed.
// Registry imports do not bump the alias version, so indexes keyed by it
// would otherwise stay stale.
func PublishRegistryChange(ctx context.Context, bus providers.EventBus) error {
	if bus == nil {
		return nil
	}
	ev := entities.NewCanonEvent(entities.CanonEventAliasChanged, "", "", "", 0)
	return bus.Publish(ctx, providers.EventChannelAliasChanges, ev)
}
