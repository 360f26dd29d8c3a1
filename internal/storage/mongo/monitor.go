package mongo

import (
	"sync"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo/description"

	"expenses/internal/database"
)

// eventRelay turns driver monitoring events into connection manager
// callbacks. A drop is a topology change from at least one reachable server
// to none; a recovery is the opposite.
type eventRelay struct {
	mu      sync.RWMutex
	handler database.EventHandler
}

func (r *eventRelay) set(h database.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *eventRelay) get() database.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handler
}

func (r *eventRelay) serverMonitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		TopologyDescriptionChanged: r.topologyChanged,
		ServerHeartbeatFailed:      r.heartbeatFailed,
	}
}

func (r *eventRelay) topologyChanged(e *event.TopologyDescriptionChangedEvent) {
	h := r.get()
	if h == nil || e == nil {
		return
	}
	was := hasAvailableServer(e.PreviousDescription)
	is := hasAvailableServer(e.NewDescription)
	switch {
	case was && !is:
		h.OnDisconnect()
	case !was && is:
		h.OnReconnect()
	}
}

func (r *eventRelay) heartbeatFailed(e *event.ServerHeartbeatFailedEvent) {
	if e == nil {
		return
	}
	r.reportError(e.Failure)
}

func (r *eventRelay) reportError(err error) {
	if h := r.get(); h != nil && err != nil {
		h.OnError(err)
	}
}

// Servers the driver cannot reach are reported with the zero kind.
const unknownServerKind description.ServerKind = 0

func hasAvailableServer(t description.Topology) bool {
	for _, srv := range t.Servers {
		if srv.Kind != unknownServerKind {
			return true
		}
	}
	return false
}
