package store

import (
	"log"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/bus"
)

// Mirror consumes pipeline lifecycle notifications and keeps the group
// snapshot table in sync. It runs off the hot path; a write failure is
// logged, never propagated back to alert processing.
type Mirror struct {
	service *Service
	bus     *bus.Bus

	unsubscribe func()
	done        chan struct{}
}

// NewMirror creates a mirror over the given store and bus
func NewMirror(service *Service, b *bus.Bus) *Mirror {
	return &Mirror{service: service, bus: b}
}

// Start subscribes to the bus and begins mirroring
func (m *Mirror) Start() {
	events, unsubscribe := m.bus.Subscribe(256)
	m.unsubscribe = unsubscribe
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		for ev := range events {
			m.apply(ev)
		}
	}()
}

// Stop unsubscribes and waits for the consumer loop to drain
func (m *Mirror) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		<-m.done
	}
}

func (m *Mirror) apply(ev bus.Event) {
	switch ev.Kind {
	case bus.KindNewGroup, bus.KindGroupUpdated:
		g, ok := ev.Payload.(*alerts.AlertGroup)
		if !ok {
			return
		}
		if err := m.service.SaveGroup(g); err != nil {
			log.Printf("Failed to mirror group %s: %v", g.ID, err)
		}
	case bus.KindGroupExpired:
		g, ok := ev.Payload.(*alerts.AlertGroup)
		if !ok {
			return
		}
		if err := m.service.MarkGroupExpired(g.ID, time.Now()); err != nil {
			log.Printf("Failed to mark group %s expired: %v", g.ID, err)
		}
	}
}
