// Package di provides dependency injection for services.
package di

import (
	"fmt"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clientdata"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clients/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/config"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/accounts"
	analyticsstore "github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/settings"
	"github.com/rs/zerolog"
)

// InitializeServices creates repositories, clients and services and stores
// them in the container. Databases must already be open.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Events
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Repositories
	container.SettingsRepo = settings.NewRepository(container.ConfigDB.Conn(), log)
	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())

	// Remote analytics service
	container.AnalyticsClient = analytics.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, log)

	// Currency
	container.CurrencyEngine = currency.NewEngine(log)
	container.RateService = currency.NewRateService(
		container.AnalyticsClient,
		container.ClientDataRepo,
		container.CurrencyEngine,
		container.EventManager,
		log,
	)

	// Preferences drive the engine's display currency
	container.PreferencesService = settings.NewPreferencesService(
		container.AnalyticsClient,
		container.SettingsRepo,
		container.CurrencyEngine,
		container.EventManager,
		settings.PreferencesOptions{MaxAttempts: cfg.PreferencesMaxAttempts},
		log,
	)

	container.AccountDirectory = accounts.NewDirectory(
		container.AnalyticsClient,
		container.ClientDataRepo,
		container.EventManager,
		log,
	)

	// Analytics pipeline
	catalog := analyticsstore.AnalyticsCatalog()
	if cfg.View == config.ViewSummary {
		catalog = analyticsstore.SummaryCatalog()
	}
	container.Orchestrator = analyticsstore.NewOrchestrator(container.AnalyticsClient, cfg.MaxConcurrentQueries, log)
	container.Assembler = analyticsstore.NewAssembler(log)
	container.Store = analyticsstore.NewStore(analyticsstore.StoreConfig{
		Orchestrator: container.Orchestrator,
		Assembler:    container.Assembler,
		Catalog:      catalog,
		Currency:     container.CurrencyEngine,
		Preferences:  container.PreferencesService,
		Accounts:     container.AccountDirectory,
		Events:       container.EventManager,
		CycleTimeout: cfg.CycleTimeout,
	}, log)

	log.Info().Str("view", cfg.View).Int("queries", len(catalog)).Msg("Services initialized")

	return nil
}
