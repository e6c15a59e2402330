package automation

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"
)

// RodFactory drives a single shared Chromium process over CDP and hands
// out sessions backed by it. The browser is launched lazily on the first
// Open and torn down by Shutdown.
type RodFactory struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	active   int
}

// NewRodFactory returns a factory that has not yet launched a browser.
func NewRodFactory(logger zerolog.Logger) *RodFactory {
	return &RodFactory{
		logger: logger.With().Str("component", "automation").Logger(),
	}
}

// Open connects a new session to the engine, launching the browser on
// first use. It returns an EngineError with code engine_unavailable when
// the browser cannot be started or reached, and resource_exhausted when
// the configured session cap is hit.
func (f *RodFactory) Open(ctx context.Context, cfg Config) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cfg.MaxSessions > 0 && f.active >= cfg.MaxSessions {
		return nil, &EngineError{
			Code:    CodeResourceExhausted,
			Message: fmt.Sprintf("session cap of %d reached", cfg.MaxSessions),
		}
	}

	if f.browser == nil {
		if err := f.launch(cfg); err != nil {
			return nil, err
		}
	}

	page, err := f.browser.Page(blankTarget())
	if err != nil {
		return nil, &EngineError{
			Code:    CodeEngineUnavailable,
			Message: fmt.Sprintf("open page: %v", err),
		}
	}

	f.active++
	f.logger.Debug().Int("active", f.active).Msg("automation session opened")

	sess := newRodSession(f, f.browser, page, cfg.ArtifactDir)
	return sess, nil
}

// launch starts Chromium and connects over CDP. Caller holds f.mu.
func (f *RodFactory) launch(cfg Config) error {
	if cfg.ChromePath == "" {
		browserPath, err := launcher.NewBrowser().Get()
		if err != nil {
			return &EngineError{
				Code:    CodeEngineUnavailable,
				Message: fmt.Sprintf("locate browser binary: %v", err),
			}
		}
		cfg.ChromePath = browserPath
	}

	userDataDir, err := os.MkdirTemp("", "webgate-chrome-*")
	if err != nil {
		return &EngineError{
			Code:    CodeEngineUnavailable,
			Message: fmt.Sprintf("create profile dir: %v", err),
		}
	}

	l := launcher.New().
		Bin(cfg.ChromePath).
		Headless(cfg.Headless).
		UserDataDir(userDataDir).
		Set("disable-dev-shm-usage")
	if cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if cfg.CDPPort > 0 {
		l = l.RemoteDebuggingPort(cfg.CDPPort)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return &EngineError{
			Code:    CodeEngineUnavailable,
			Message: fmt.Sprintf("launch browser: %v", err),
		}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return &EngineError{
			Code:    CodeEngineUnavailable,
			Message: fmt.Sprintf("connect to browser: %v", err),
		}
	}

	f.launcher = l
	f.browser = browser
	f.logger.Info().
		Bool("headless", cfg.Headless).
		Str("control_url", controlURL).
		Msg("browser launched")
	return nil
}

// release is called by a session on Close.
func (f *RodFactory) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active > 0 {
		f.active--
	}
	f.logger.Debug().Int("active", f.active).Msg("automation session released")
}

// Active returns the number of open sessions.
func (f *RodFactory) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Shutdown closes the shared browser and kills the underlying process.
// Sessions still open become unusable; their Close remains safe.
func (f *RodFactory) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			firstErr = fmt.Errorf("close browser: %w", err)
		}
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Kill()
		f.launcher = nil
	}
	f.active = 0
	f.logger.Info().Msg("browser shut down")
	return firstErr
}
