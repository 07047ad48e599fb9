/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server for access to services.
 */
package di

import (
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clientdata"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clients/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/database"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/accounts"
	analyticsstore "github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/settings"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: config.db (preferences mirror) and client_data.db (rate and account cache)
 * - Clients: the remote analytics service
 * - Repositories: settings and client data
 * - Services: conversion engine, rates, preferences, accounts, analytics store
 */
type Container struct {
	// Databases
	ConfigDB     *database.DB // Local mirror of the currency preferences
	ClientDataDB *database.DB // Cache for exchange rates and the account list

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Clients
	AnalyticsClient *analytics.Client

	// Repositories
	SettingsRepo   *settings.Repository
	ClientDataRepo *clientdata.Repository

	// Services
	CurrencyEngine     *currency.Engine
	RateService        *currency.RateService
	PreferencesService *settings.PreferencesService
	AccountDirectory   *accounts.Directory

	// Analytics pipeline
	Orchestrator *analyticsstore.Orchestrator
	Assembler    *analyticsstore.Assembler
	Store        *analyticsstore.Store
}

// Databases returns the open databases in a stable order.
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.ConfigDB, c.ClientDataDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close stops the store and closes the databases.
func (c *Container) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
