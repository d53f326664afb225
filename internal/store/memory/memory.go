// Package memory implements an in-process transcript driver. Nothing
// survives Close; it is the default when no data directory is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/sessionkit/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver keeps exchanges in maps guarded by a mutex.
type Driver struct {
	mu        sync.RWMutex
	closed    bool
	exchanges map[string]*store.Exchange // keyed by id
	bySession map[string][]string        // session id -> exchange ids
}

// NewDriver creates a new memory driver instance. cfg is ignored.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	return New(), nil
}

// New creates a ready-to-use memory driver.
func New() *Driver {
	return &Driver{
		exchanges: make(map[string]*store.Exchange),
		bySession: make(map[string][]string),
	}
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// AppendExchange stores a copy of ex.
func (d *Driver) AppendExchange(ctx context.Context, ex *store.Exchange) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.exchanges[ex.ID]; exists {
		return store.ErrAlreadyExists
	}

	cp := *ex
	d.exchanges[ex.ID] = &cp
	d.bySession[ex.SessionID] = append(d.bySession[ex.SessionID], ex.ID)
	return nil
}

// GetExchange returns a copy of one exchange.
func (d *Driver) GetExchange(ctx context.Context, id string) (*store.Exchange, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	ex, ok := d.exchanges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ex
	return &cp, nil
}

// ListExchanges returns copies ordered by Seq.
func (d *Driver) ListExchanges(ctx context.Context, sessionID string) ([]*store.Exchange, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	ids := d.bySession[sessionID]
	out := make([]*store.Exchange, 0, len(ids))
	for _, id := range ids {
		cp := *d.exchanges[id]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// ListSessions returns the sorted ids of sessions with exchanges.
func (d *Driver) ListSessions(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	out := make([]string, 0, len(d.bySession))
	for id := range d.bySession {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// DeleteSession drops every exchange of a session.
func (d *Driver) DeleteSession(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	ids, ok := d.bySession[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	for _, id := range ids {
		delete(d.exchanges, id)
	}
	delete(d.bySession, sessionID)
	return nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.TranscriptStore = (*Driver)(nil)
