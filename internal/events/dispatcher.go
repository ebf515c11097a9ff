package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/pkg/logger"
)

// Event names dispatched by the team lifecycle manager.
const (
	TeamCreated        = "team.created"
	TeamDeleted        = "team.deleted"
	TeamMemberAdding   = "team.member_adding"
	TeamMemberAdded    = "team.member_added"
	TeamMemberInviting = "team.member_inviting"
	TeamMemberRemoved  = "team.member_removed"
)

// Event carries the subject of a team lifecycle notification.
type Event struct {
	Name   string
	Team   *models.Team
	User   *models.User
	Email  string
	Role   string
	Detail map[string]any
}

// Listener handles a dispatched event. Listener errors are logged, never
// propagated: hooks must not be able to abort the operation that fired them.
type Listener func(ctx context.Context, event Event)

// Dispatcher invokes listeners synchronously, in registration order, on the
// caller's goroutine. Dispatching an event nobody listens to is a no-op,
// not an error.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	log       *zap.Logger
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		listeners: make(map[string][]Listener),
		log:       logger.WithModule("events"),
	}
}

// Subscribe registers a listener for the named event.
func (d *Dispatcher) Subscribe(name string, listener Listener) {
	if listener == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[name] = append(d.listeners[name], listener)
}

// Dispatch delivers the event to every registered listener in order.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	d.mu.RLock()
	registered := d.listeners[event.Name]
	d.mu.RUnlock()

	for _, listener := range registered {
		listener(ctx, event)
	}

	d.log.Debug("event dispatched",
		zap.String("event", event.Name),
		zap.Int("listeners", len(registered)))
}
