// Package scripts injects provider SDK scripts into the page and resolves
// the globals they install.
package scripts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"checkout-service/internal/host"
)

// DefaultSettleDelay is waited after a batch of scripts resolves so the
// providers can finish their own initialization.
const DefaultSettleDelay = time.Second

// LibraryNotLoadedError is returned when a provider global is unavailable.
type LibraryNotLoadedError struct {
	Library string
}

func (e *LibraryNotLoadedError) Error() string {
	return fmt.Sprintf("%s was not loaded", e.Library)
}

// Loader injects scripts into one page. Each script ID is injected at most
// once; concurrent requests for the same ID share the injection.
type Loader struct {
	page   host.Page
	logger *logrus.Entry
	settle time.Duration

	mu     sync.Mutex
	loaded map[string]bool
	group  singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.settle = d
	}
}

// NewLoader creates a loader for page.
func NewLoader(page host.Page, logger *logrus.Entry, opts ...LoaderOption) *Loader {
	l := &Loader{
		page:   page,
		logger: logger.WithField("component", "scripts.loader"),
		settle: DefaultSettleDelay,
		loaded: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load ensures every script is on the page in the order given, then waits
// the settle delay. Component scripts extend the global of an earlier
// script, so each script finishes before the next is injected. Unknown IDs
// are logged and skipped.
func (l *Loader) Load(ctx context.Context, scripts ...Script) error {
	if len(scripts) == 0 {
		return nil
	}

	for _, s := range scripts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.load(ctx, s); err != nil {
			return err
		}
	}

	if l.settle <= 0 {
		return nil
	}
	timer := time.NewTimer(l.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Loaded reports whether id finished loading on this page.
func (l *Loader) Loaded(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[id]
}

func (l *Loader) load(ctx context.Context, s Script) error {
	h, ok := handlers[s.ID]
	if !ok {
		l.logger.WithField("script_id", s.ID).Warn("Unknown script ID, skipping")
		return nil
	}

	if l.Loaded(s.ID) {
		return nil
	}

	_, err, _ := l.group.Do(s.ID, func() (any, error) {
		if h.requires != "" {
			parent := handlers[h.requires]
			if _, present := l.page.Global(parent.global); !present {
				return nil, &LibraryNotLoadedError{Library: parent.library}
			}
		}
		if _, present := l.page.Global(h.global); !present {
			tag := &host.ScriptTag{
				ID:     s.ID,
				Src:    h.src(s.Params),
				Global: h.global,
			}
			if h.attrs != nil {
				tag.Attrs = h.attrs(s.Params)
			}

			l.logger.WithFields(logrus.Fields{
				"script_id": s.ID,
				"src":       tag.Src,
			}).Debug("Injecting script")

			if err := l.page.InjectScript(ctx, tag); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", s.ID, err)
			}
		}

		if _, present := l.page.Global(h.global); !present {
			return nil, &LibraryNotLoadedError{Library: h.library}
		}

		l.mu.Lock()
		l.loaded[s.ID] = true
		l.mu.Unlock()
		return nil, nil
	})
	return err
}
