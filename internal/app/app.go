// Package app wires configuration, preferences, the API client, the state
// stores, and the UI into the running Curator application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/calref/curator/internal/config"
	"github.com/calref/curator/internal/labelbase"
	"github.com/calref/curator/internal/nav"
	"github.com/calref/curator/internal/prefs"
	"github.com/calref/curator/internal/store"
	"github.com/calref/curator/internal/ui"
	"github.com/calref/curator/internal/views"
)

// Options configure the Curator application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/curator/prefs.toml
	Server     string // overrides the configured server when set
	PollEvery  int    // seconds; zero uses default
}

// Run boots the Curator TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	server := cfg.Server
	if opts.Server != "" {
		server = opts.Server
	}

	client, err := labelbase.NewClient(server)
	if err != nil {
		return fmt.Errorf("init labelbase client: %w", err)
	}

	userPrefs := prefs.Open(opts.PrefsPath)

	pollEvery := time.Duration(cfg.PollEverySeconds) * time.Second
	if opts.PollEvery > 0 {
		pollEvery = time.Duration(opts.PollEvery) * time.Second
	}

	viewStore := views.New()
	history := &nav.History{}
	// Back navigation re-selects the tab the popped state points at; the UI
	// refetches after popping.
	history.SetPopHandler(func(state nav.State) {
		if state.TabID != 0 {
			viewStore.Select(state.TabID)
		}
	})
	host := ui.NewHost()

	appStore := store.New(store.Options{
		Transport:      client,
		Views:          viewStore,
		Navigator:      history,
		Host:           host,
		Prefs:          userPrefs,
		PollEvery:      pollEvery,
		DisablePolling: cfg.DisablePolling,
	})
	viewStore.SetCaller(appStore)
	defer appStore.Destroy()

	return ui.Run(ui.Options{
		Context: ctx,
		App:     appStore,
		Views:   viewStore,
		Prefs:   userPrefs,
		Nav:     history,
		Host:    host,
	})
}
