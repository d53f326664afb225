// Package json implements a JSON file-based transcript driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/sessionkit/internal/store"
)

const exchangesFile = "exchanges.json"

func init() {
	store.Register("json", NewDriver)
}

// Driver implements store.Driver using a single JSON file.
type Driver struct {
	dataDir string
	mu      sync.RWMutex
	closed  bool

	exchanges map[string]*store.Exchange // keyed by id
}

// NewDriver creates a new JSON driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}

	return &Driver{
		dataDir:   cfg.DataDir,
		exchanges: make(map[string]*store.Exchange),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "json"
}

// Init loads existing exchanges from disk.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	if err := d.loadFile(exchangesFile, &d.exchanges); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load exchanges: %w", err)
	}
	if d.exchanges == nil {
		d.exchanges = make(map[string]*store.Exchange)
	}
	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Driver) loadFile(filename string, target interface{}) error {
	path := filepath.Join(d.dataDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// saveFile atomically writes data to a JSON file.
// Pattern: write to temp file, fsync, rename.
func (d *Driver) saveFile(filename string, data interface{}) error {
	path := filepath.Join(d.dataDir, filename)
	tempPath := path + ".tmp"

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(jsonData); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// AppendExchange stores ex and flushes the file.
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
	if err := d.saveFile(exchangesFile, d.exchanges); err != nil {
		delete(d.exchanges, ex.ID)
		return err
	}
	return nil
}

// GetExchange returns one exchange by id.
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

// ListExchanges returns the exchanges of a session ordered by Seq.
func (d *Driver) ListExchanges(ctx context.Context, sessionID string) ([]*store.Exchange, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	var out []*store.Exchange
	for _, ex := range d.exchanges {
		if ex.SessionID == sessionID {
			cp := *ex
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

// ListSessions returns the sorted ids of sessions with exchanges.
func (d *Driver) ListSessions(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	seen := make(map[string]struct{})
	for _, ex := range d.exchanges {
		seen[ex.SessionID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// DeleteSession removes every exchange of a session and flushes the file.
func (d *Driver) DeleteSession(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	removed := make(map[string]*store.Exchange)
	for id, ex := range d.exchanges {
		if ex.SessionID == sessionID {
			removed[id] = ex
			delete(d.exchanges, id)
		}
	}
	if len(removed) == 0 {
		return store.ErrNotFound
	}
	if err := d.saveFile(exchangesFile, d.exchanges); err != nil {
		for id, ex := range removed {
			d.exchanges[id] = ex
		}
		return err
	}
	return nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.TranscriptStore = (*Driver)(nil)
