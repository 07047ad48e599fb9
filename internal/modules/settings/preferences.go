package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
)

// Where loaded preferences came from.
const (
	SourceRemote  = "remote"
	SourceLocal   = "local"
	SourceDefault = "default"
)

// RemoteSettings is the remote currency settings endpoint.
type RemoteSettings interface {
	GetCurrencySettings(ctx context.Context) (domain.CurrencyPreferences, error)
	SetDefaultCurrency(ctx context.Context, code string) error
	SetShowConverted(ctx context.Context, show bool) error
}

// DisplayCurrencyEngine is the part of the conversion engine preferences drive.
type DisplayCurrencyEngine interface {
	SetDisplayCurrency(code string) error
	Supports(code string) bool
}

// PreferencesOptions tunes the load retry loop.
type PreferencesOptions struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// PreferencesService owns the client-side copy of the currency preferences.
type PreferencesService struct {
	remote RemoteSettings
	repo   *Repository
	engine DisplayCurrencyEngine
	events *events.Manager
	opts   PreferencesOptions
	log    zerolog.Logger

	updateMu sync.Mutex // serializes optimistic updates
	mu       sync.RWMutex
	prefs    domain.CurrencyPreferences
	loaded   bool
	source   string
}

// NewPreferencesService creates the service with default preferences.
// repo and eventManager may be nil.
func NewPreferencesService(
	remote RemoteSettings,
	repo *Repository,
	engine DisplayCurrencyEngine,
	eventManager *events.Manager,
	opts PreferencesOptions,
	log zerolog.Logger,
) *PreferencesService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 5 * time.Second
	}
	return &PreferencesService{
		remote: remote,
		repo:   repo,
		engine: engine,
		events: eventManager,
		opts:   opts,
		log:    log.With().Str("service", "preferences").Logger(),
		prefs:  domain.DefaultCurrencyPreferences(),
		source: SourceDefault,
	}
}

// Preferences returns the current preferences.
func (s *PreferencesService) Preferences() domain.CurrencyPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Loaded reports whether Load has completed.
func (s *PreferencesService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Source reports where the current preferences were loaded from.
func (s *PreferencesService) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Load fetches preferences from the remote service, retrying with
// exponential backoff, then falls back to the local mirror and finally to
// the defaults. It always completes and emits PreferencesLoaded.
func (s *PreferencesService) Load(ctx context.Context) domain.CurrencyPreferences {
	prefs, source := s.loadRemote(ctx)
	if source == "" {
		prefs, source = s.loadLocal()
	}

	if err := s.engine.SetDisplayCurrency(prefs.DefaultCurrency); err != nil {
		s.log.Warn().Err(err).Str("currency", prefs.DefaultCurrency).Msg("Unsupported default currency, using USD")
		prefs.DefaultCurrency = domain.DefaultCurrencyPreferences().DefaultCurrency
		_ = s.engine.SetDisplayCurrency(prefs.DefaultCurrency)
	}

	s.mu.Lock()
	s.prefs = prefs
	s.loaded = true
	s.source = source
	s.mu.Unlock()

	if source == SourceRemote {
		s.mirror(prefs)
	}

	s.log.Info().
		Str("default_currency", prefs.DefaultCurrency).
		Bool("show_converted", prefs.ShowConverted).
		Str("source", source).
		Msg("Currency preferences loaded")

	if s.events != nil {
		s.events.Emit("settings", &events.PreferencesLoadedData{
			DefaultCurrency: prefs.DefaultCurrency,
			ShowConverted:   prefs.ShowConverted,
			Source:          source,
		})
	}
	return prefs
}

func (s *PreferencesService) loadRemote(ctx context.Context) (domain.CurrencyPreferences, string) {
	if s.remote == nil {
		return domain.CurrencyPreferences{}, ""
	}

	b := &backoff.Backoff{Min: s.opts.MinBackoff, Max: s.opts.MaxBackoff, Factor: 2}
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		prefs, err := s.remote.GetCurrencySettings(ctx)
		if err == nil {
			prefs.DefaultCurrency = currency.NormalizeCode(prefs.DefaultCurrency)
			if prefs.DefaultCurrency == "" {
				prefs.DefaultCurrency = domain.DefaultCurrencyPreferences().DefaultCurrency
			}
			return prefs, SourceRemote
		}

		s.log.Warn().Err(err).Int("attempt", attempt).Msg("Failed to load currency preferences")
		if attempt == s.opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return domain.CurrencyPreferences{}, ""
		case <-time.After(b.Duration()):
		}
	}
	return domain.CurrencyPreferences{}, ""
}

func (s *PreferencesService) loadLocal() (domain.CurrencyPreferences, string) {
	prefs := domain.DefaultCurrencyPreferences()
	if s.repo == nil {
		return prefs, SourceDefault
	}

	code, err := s.repo.Get(KeyDefaultCurrency)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read local preferences")
		return prefs, SourceDefault
	}
	if code == nil {
		return prefs, SourceDefault
	}
	prefs.DefaultCurrency = currency.NormalizeCode(*code)

	if show, ok, err := s.repo.GetBool(KeyShowConverted); err == nil && ok {
		prefs.ShowConverted = show
	}
	return prefs, SourceLocal
}

// SetDefaultCurrency applies the new currency locally, then persists it.
// When persisting fails the local change is rolled back.
func (s *PreferencesService) SetDefaultCurrency(ctx context.Context, code string) error {
	code = currency.NormalizeCode(code)
	if !s.engine.Supports(code) {
		return fmt.Errorf("%w: %s", currency.ErrUnsupportedCurrency, code)
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	previous := s.Preferences()
	if previous.DefaultCurrency == code {
		return nil
	}

	next := previous
	next.DefaultCurrency = code
	if err := s.apply(previous, next, false); err != nil {
		return err
	}

	if s.remote != nil {
		if err := s.remote.SetDefaultCurrency(ctx, code); err != nil {
			s.log.Error().Err(err).Str("currency", code).Msg("Failed to persist default currency, rolling back")
			_ = s.apply(next, previous, true)
			return fmt.Errorf("failed to persist default currency: %w", err)
		}
	}

	s.mirror(next)
	return nil
}

// SetShowConverted applies the flag locally, then persists it.
func (s *PreferencesService) SetShowConverted(ctx context.Context, show bool) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	previous := s.Preferences()
	if previous.ShowConverted == show {
		return nil
	}

	next := previous
	next.ShowConverted = show
	if err := s.apply(previous, next, false); err != nil {
		return err
	}

	if s.remote != nil {
		if err := s.remote.SetShowConverted(ctx, show); err != nil {
			s.log.Error().Err(err).Bool("show_converted", show).Msg("Failed to persist show-converted, rolling back")
			_ = s.apply(next, previous, true)
			return fmt.Errorf("failed to persist show-converted: %w", err)
		}
	}

	s.mirror(next)
	return nil
}

func (s *PreferencesService) apply(from, to domain.CurrencyPreferences, rolledBack bool) error {
	if from.DefaultCurrency != to.DefaultCurrency {
		if err := s.engine.SetDisplayCurrency(to.DefaultCurrency); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.prefs = to
	s.mu.Unlock()

	if s.events != nil {
		s.events.Emit("settings", &events.CurrencyChangedData{
			Previous:      from.DefaultCurrency,
			Current:       to.DefaultCurrency,
			ShowConverted: to.ShowConverted,
			RolledBack:    rolledBack,
		})
	}
	return nil
}

func (s *PreferencesService) mirror(prefs domain.CurrencyPreferences) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Set(KeyDefaultCurrency, prefs.DefaultCurrency); err != nil {
		s.log.Error().Err(err).Msg("Failed to mirror default currency")
	}
	if err := s.repo.SetBool(KeyShowConverted, prefs.ShowConverted); err != nil {
		s.log.Error().Err(err).Msg("Failed to mirror show-converted")
	}
}
