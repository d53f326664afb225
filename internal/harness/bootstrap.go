package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/config"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
	"github.com/MahdiBaghbani/sessionkit/internal/routing"
	"github.com/MahdiBaghbani/sessionkit/internal/store"

	// Register transcript drivers
	_ "github.com/MahdiBaghbani/sessionkit/internal/store/loader"
)

// NewFromConfig builds a harness from configuration: every configured
// controller is constructed from the registry, cfg.Routes becomes the
// routing table and, when enabled, a transcript driver records exchanges.
// Controllers must be registered before the call.
func NewFromConfig(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Harness, error) {
	log = logutil.NoopIfNil(log)

	h := &Harness{}
	fail := func(err error) (*Harness, error) {
		if cerr := h.Close(); cerr != nil {
			log.Warn("cleanup after failed bootstrap", "error", cerr)
		}
		return nil, err
	}

	byName := make(map[string]controller.Controller)
	for _, name := range cfg.ControllerNames() {
		newFn := controller.Get(name)
		if newFn == nil {
			return fail(fmt.Errorf("controller %q not registered (available: %v)", name, controller.Registered()))
		}
		c, err := newFn(cfg.BuildControllerConfig(name), log.With("controller", name))
		if err != nil {
			return fail(fmt.Errorf("failed to create controller %q: %w", name, err))
		}
		h.controllers = append(h.controllers, c)
		byName[name] = c
		log.Debug("controller created", "controller", name)
	}

	routes := make([]routing.Route, 0, len(cfg.Routes))
	for _, r := range cfg.Routes {
		c, ok := byName[r.Controller]
		if !ok {
			return fail(fmt.Errorf("route %s: controller %q is not configured", r.Pattern, r.Controller))
		}
		routes = append(routes, routing.Route{
			Pattern:    r.Pattern,
			Controller: c,
			Action:     r.Action,
			Methods:    r.Methods,
		})
	}
	rs, err := routing.NewRouteSet(routes...)
	if err != nil {
		return fail(err)
	}

	opts := []Option{WithConfig(cfg), WithLogger(log), WithRouteSet(rs)}
	if cfg.Transcript.Enabled {
		driver, err := store.New(&store.DriverConfig{
			Driver:  cfg.Transcript.Driver,
			DataDir: cfg.Transcript.DataDir,
			Mirror:  store.MirrorConfig{IncludeCookies: cfg.Transcript.IncludeCookies},
		})
		if err != nil {
			return fail(fmt.Errorf("failed to create transcript driver: %w", err))
		}
		h.driver = driver
		if err := driver.Init(ctx); err != nil {
			return fail(fmt.Errorf("failed to init transcript driver %s: %w", driver.Name(), err))
		}
		ts, ok := driver.(store.TranscriptStore)
		if !ok {
			return fail(fmt.Errorf("driver %s does not record transcripts", driver.Name()))
		}
		opts = append(opts, WithRecorder(ts))
		log.Info("recording transcripts", "driver", driver.Name(), "data_dir", cfg.Transcript.DataDir)
	}

	built := New(opts...)
	built.controllers = h.controllers
	built.driver = h.driver
	return built, nil
}
