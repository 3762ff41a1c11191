package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core"
)

// LogPublisher writes domain events to the logger; it is used when no broker is configured.
// Published events are kept in memory so tests can inspect them.
type LogPublisher struct {
	logger core.Logger

	mu        sync.Mutex
	published []core.Event
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger core.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, evt core.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		err = errors.Wrap(err, "encoding event")
		countPublished(evt.Name, err)
		return err
	}
	if p.logger != nil {
		p.logger.Info("event: " + string(body))
	}

	p.mu.Lock()
	p.published = append(p.published, evt)
	p.mu.Unlock()
	countPublished(evt.Name, nil)
	return nil
}

// Published returns the events published so far, oldest first.
func (p *LogPublisher) Published() []core.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	evts := make([]core.Event, len(p.published))
	copy(evts, p.published)
	return evts
}

// Names returns the names of the events published so far, oldest first.
func (p *LogPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.published))
	for _, evt := range p.published {
		names = append(names, evt.Name)
	}
	return names
}

func (p *LogPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = nil
}
