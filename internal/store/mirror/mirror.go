// Package mirror implements a SQLite + JSON mirror transcript driver.
// SQLite is the source of truth; each session is also exported to
// mirror/<session id>.json for reading by people. The driver never reads
// the JSON files back.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MahdiBaghbani/sessionkit/internal/store"
	"github.com/MahdiBaghbani/sessionkit/internal/store/sqlite"
)

const redacted = "[REDACTED]"

// cookieHeaders are dropped from the export unless IncludeCookies is set.
var cookieHeaders = []string{"Cookie", "Set-Cookie"}

func init() {
	store.Register("mirror", NewDriver)
}

// Driver implements store.Driver with SQLite + JSON mirror.
type Driver struct {
	*sqlite.Driver

	dataDir   string
	mirrorCfg store.MirrorConfig
	mu        sync.Mutex // protects JSON export operations
}

// NewDriver creates a new mirror driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for mirror driver")
	}
	inner, err := sqlite.NewDriver(cfg)
	if err != nil {
		return nil, err
	}
	return &Driver{
		Driver:    inner.(*sqlite.Driver),
		dataDir:   cfg.DataDir,
		mirrorCfg: cfg.Mirror,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "mirror"
}

// Init opens the database and exports every stored session.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.mirrorDir(), 0700); err != nil {
		return fmt.Errorf("failed to create mirror dir: %w", err)
	}
	if err := d.Driver.Init(ctx); err != nil {
		return err
	}

	sessions, err := d.Driver.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, id := range sessions {
		if err := d.exportSession(ctx, id); err != nil {
			return fmt.Errorf("failed to export mirror: %w", err)
		}
	}
	return nil
}

func (d *Driver) mirrorDir() string {
	return filepath.Join(d.dataDir, "mirror")
}

// AppendExchange stores ex in SQLite and re-exports its session.
func (d *Driver) AppendExchange(ctx context.Context, ex *store.Exchange) error {
	if err := d.Driver.AppendExchange(ctx, ex); err != nil {
		return err
	}
	return d.exportSession(ctx, ex.SessionID)
}

// DeleteSession removes the session from SQLite and its export file.
func (d *Driver) DeleteSession(ctx context.Context, sessionID string) error {
	if err := d.Driver.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.Remove(d.exportPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove mirror file: %w", err)
	}
	return nil
}

func (d *Driver) exportPath(sessionID string) string {
	return filepath.Join(d.mirrorDir(), filepath.Base(sessionID)+".json")
}

// exportedExchange is the JSON shape of one exchange in the mirror.
type exportedExchange struct {
	Seq             int                 `json:"seq"`
	Method          string              `json:"method"`
	URL             string              `json:"url"`
	Status          int                 `json:"status"`
	RequestHeaders  map[string][]string `json:"request_headers"`
	ResponseHeaders map[string][]string `json:"response_headers"`
	Body            string              `json:"body"`
	CreatedAt       int64               `json:"created_at"`
}

// exportSession writes the session's exchanges with cookie redaction.
func (d *Driver) exportSession(ctx context.Context, sessionID string) error {
	exchanges, err := d.Driver.ListExchanges(ctx, sessionID)
	if err != nil {
		return err
	}

	out := make([]exportedExchange, 0, len(exchanges))
	for _, ex := range exchanges {
		reqH, err := store.DecodeHeader(ex.RequestHeaders)
		if err != nil {
			return err
		}
		resH, err := store.DecodeHeader(ex.ResponseHeaders)
		if err != nil {
			return err
		}
		if !d.mirrorCfg.IncludeCookies {
			for _, name := range cookieHeaders {
				if reqH.Get(name) != "" {
					reqH[name] = []string{redacted}
				}
				if resH.Get(name) != "" {
					resH[name] = []string{redacted}
				}
			}
		}
		out = append(out, exportedExchange{
			Seq:             ex.Seq,
			Method:          ex.Method,
			URL:             ex.URL,
			Status:          ex.Status,
			RequestHeaders:  reqH,
			ResponseHeaders: resH,
			Body:            ex.Body,
			CreatedAt:       ex.CreatedAt,
		})
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeJSON(d.exportPath(sessionID), out)
}

// writeJSON atomically writes data to path.
func (d *Driver) writeJSON(path string, data interface{}) error {
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

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.TranscriptStore = (*Driver)(nil)
