// Package app wires configuration, adapters and use cases for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/adapter/agentproc"
	"github.com/moicben/calendar-agent/internal/adapter/chromedp_browser"
	"github.com/moicben/calendar-agent/internal/adapter/flatfile"
	"github.com/moicben/calendar-agent/internal/adapter/memory"
	redis_adapter "github.com/moicben/calendar-agent/internal/adapter/redis"
	"github.com/moicben/calendar-agent/internal/adapter/serper"
	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
	"github.com/moicben/calendar-agent/internal/usecase"
	"github.com/moicben/calendar-agent/pkg/config"
	"github.com/moicben/calendar-agent/pkg/metrics"
)

// App holds the shared infrastructure of a process.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	FS      afero.Fs

	redis *redis.Client
	agent *agentproc.Client
}

// New connects the optional Redis backend. Without REDIS_ADDR the search
// cache and the harvest lock stay in process.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		FS:      afero.NewOsFs(),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("unable to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("Redis connection established", zap.String("addr", cfg.RedisAddr))
		a.redis = rdb
	}
	return a, nil
}

// Close releases the agent process and the Redis connection.
func (a *App) Close() {
	if a.agent != nil {
		if err := a.agent.Close(); err != nil {
			a.Logger.Warn("agent process did not stop cleanly", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// SearchCache returns the Redis cache when configured, the in-process LRU otherwise.
func (a *App) SearchCache() repository.SearchCacheRepository {
	if a.redis != nil {
		return redis_adapter.NewSearchCacheRepo(a.redis)
	}
	return memory.NewSearchCacheRepo(a.Config.SearchCacheSize, a.Config.SearchCacheTTL())
}

// Lock returns the Redis lock when configured, the in-process lock otherwise.
func (a *App) Lock() repository.LockRepository {
	if a.redis != nil {
		return redis_adapter.NewLockRepo(a.redis)
	}
	return memory.NewLockRepo()
}

// Finder wires the harvesting pipeline.
func (a *App) Finder() (*usecase.Finder, error) {
	cfg := a.Config
	if err := cfg.RequireSearch(); err != nil {
		return nil, err
	}

	var search repository.SearchRepository = serper.NewClient(serper.Options{
		APIKey:        cfg.SerperAPIKey,
		BaseURL:       cfg.SerperBaseURL,
		Country:       cfg.SearchCountry,
		Language:      cfg.SearchLanguage,
		RatePerSecond: cfg.SearchRatePerSec,
	}, nil, a.Logger.Named("serper"))
	if cfg.SearchCacheTTLSecs > 0 {
		search = usecase.NewCachedSearch(search, a.SearchCache(), cfg.SearchCacheTTL(), a.Metrics, a.Logger)
	}

	historic := flatfile.NewURLListRepo(a.FS, cfg.HistoricPath())
	newSet := flatfile.NewURLListRepo(a.FS, cfg.NewPath())

	harvester := usecase.NewHarvester(search, entity.EndpointSearch, a.Metrics, a.Logger.Named("harvester"))
	return usecase.NewFinder(harvester, usecase.NewDedupStore(historic), newSet, a.Lock(), usecase.FinderOptions{
		PageSize: cfg.SearchPageSize,
		LockTTL:  cfg.HarvestLockTTL(),
		Paths:    usecase.SummaryPaths{New: cfg.NewPath(), Historic: cfg.HistoricPath()},
	}, a.Metrics, a.Logger.Named("finder")), nil
}

// ProxyPool loads the proxies file.
func (a *App) ProxyPool(ctx context.Context) (*usecase.ProxyPool, error) {
	proxies, err := flatfile.NewProxyRepo(a.FS, a.Config.ProxiesFile, a.Logger).LoadProxies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load proxies: %w", err)
	}
	policy := usecase.ReuseOnExhaustion
	if !a.Config.ProxyReuse {
		policy = usecase.FailOnExhaustion
	}
	return usecase.NewProxyPool(proxies, policy), nil
}

// Agent starts the agent process once and returns it.
func (a *App) Agent(ctx context.Context) (*agentproc.Client, error) {
	if a.agent != nil {
		return a.agent, nil
	}
	if err := a.Config.RequireAgent(); err != nil {
		return nil, err
	}
	c, err := agentproc.Start(ctx, agentproc.Options{
		Command:        a.Config.AgentCommand,
		RequestTimeout: a.Config.AgentTimeout(),
	}, a.Logger.Named("agent"))
	if err != nil {
		return nil, err
	}
	a.agent = c
	return c, nil
}

// Browsers returns the Chrome launcher.
func (a *App) Browsers() *chromedp_browser.Launcher {
	return chromedp_browser.NewLauncher(chromedp_browser.Options{ChromePath: a.Config.ChromePath}, a.Logger.Named("browser"))
}

// Attempter wires booking attempts to the agent.
func (a *App) Attempter(agent repository.AgentRepository) *usecase.AgentAttempter {
	cfg := a.Config
	return usecase.NewAgentAttempter(a.Browsers(), agent, cfg.Contact(), usecase.AttemptOptions{
		Headless:  cfg.BrowserHeadless,
		MaxSteps:  cfg.AgentMaxSteps,
		Model:     cfg.AgentModel,
		Preflight: cfg.Preflight,
	}, a.Logger.Named("attempter"))
}

// BatchBooker wires the booking batch over the proceed and booked files.
func (a *App) BatchBooker(ctx context.Context, sourcePath string) (*usecase.BatchBooker, error) {
	agent, err := a.Agent(ctx)
	if err != nil {
		return nil, err
	}
	pool, err := a.ProxyPool(ctx)
	if err != nil {
		return nil, err
	}
	cfg := a.Config
	orchestrator := usecase.NewRetryOrchestrator(pool, a.Attempter(agent), usecase.RetryOptions{
		MaxAttempts:    cfg.MaxBookingAttempts,
		AttemptTimeout: cfg.AttemptTimeout(),
	}, a.Metrics, a.Logger.Named("retry"))

	if sourcePath == "" {
		sourcePath = cfg.ProceedPath()
	}
	return usecase.NewBatchBooker(
		orchestrator,
		flatfile.NewURLListRepo(a.FS, sourcePath),
		flatfile.NewBookedRepo(a.FS, cfg.BookedPath()),
		cfg.BookingParallelism,
		a.Logger.Named("booker"),
	), nil
}

// GoalRunner wires free-form agent goals.
func (a *App) GoalRunner(agent repository.AgentRepository) *usecase.GoalRunner {
	cfg := a.Config
	return usecase.NewGoalRunner(a.Browsers(), agent, usecase.GoalDefaults{
		Headless: cfg.BrowserHeadless,
		MaxSteps: cfg.AgentMaxSteps,
		Model:    cfg.AgentModel,
	}, a.Logger.Named("goal"))
}

// BookingService wires single-shot bookings for the HTTP API.
func (a *App) BookingService(ctx context.Context, agent repository.AgentRepository) (*usecase.BookingService, error) {
	pool, err := a.ProxyPool(ctx)
	if err != nil {
		return nil, err
	}
	return usecase.NewBookingService(pool, a.Attempter(agent), a.Logger.Named("booking")), nil
}
