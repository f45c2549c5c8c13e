// README: Composition root shared by the API server and the demo CLI; turns a Config into a wired SearchOrchestrator.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scout/internal/ai"
	"scout/internal/backpressure"
	"scout/internal/cache"
	"scout/internal/config"
	"scout/internal/infra"
	"scout/internal/maps"
	"scout/internal/modules/intent"
	"scout/internal/modules/language"
	"scout/internal/modules/narration"
	"scout/internal/modules/quota"
	"scout/internal/modules/session"
	"scout/internal/modules/venue"
	"scout/internal/service"
)

// App holds the long-lived collaborators of one process.
type App struct {
	Search   *service.SearchOrchestrator
	Verifier infra.TokenVerifier

	sweepers []func(context.Context)
	closers  []func()
}

// Options switch off backends a caller does not want, such as the demo CLI
// which never needs auth or the quota store.
type Options struct {
	SkipAuth  bool
	SkipDB    bool
	SkipRedis bool
}

// Build connects the configured backends and wires the orchestrator. Redis
// is optional at runtime: when it cannot be reached the process runs on
// local caches with no session store.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	app := &App{}

	var redisClient *redis.Client
	if !opts.SkipRedis {
		c, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Warn("redis unavailable, running on local caches only", zap.Error(err))
		}
		if c != nil {
			redisClient = c
			app.closers = append(app.closers, func() { _ = c.Close() })
		}
	}

	var db *pgxpool.Pool
	if !opts.SkipDB {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if pool != nil {
			db = pool
			app.closers = append(app.closers, pool.Close)
		}
	}

	if !opts.SkipAuth {
		verifier, err := infra.NewFirebaseVerifier(ctx, infra.FirebaseOptions{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsFile: cfg.Firebase.CredentialsFile,
			CheckRevoked:    cfg.Firebase.CheckRevoked,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("firebase init: %w", err)
		}
		app.Verifier = verifier
	}

	mapsClient, limiter, err := maps.NewClient(maps.ClientOptions{
		APIKey:  cfg.Maps.APIKey,
		BaseURL: cfg.Maps.BaseURL,
		QPS:     cfg.Maps.QPS,
		Burst:   cfg.Maps.Burst,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	// The model-backed capabilities stay nil interfaces without a key, so
	// intent falls back to the heuristic and narration to fixed copy.
	var (
		extractor ai.IntentExtractor
		narrator  ai.Narrator
	)
	if cfg.AI.GeminiKey != "" {
		provider, err := ai.NewGeminiProvider(ctx, cfg.AI.GeminiKey, cfg.AI.Model)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, provider.Close)
		extractor, narrator = provider, provider
	} else {
		logger.Warn("no gemini key configured; heuristic intent and fixed narration only")
	}

	narrationSvc, err := narration.NewService(narrator, narration.Options{Timeout: cfg.Timeouts.Narration}, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	caches := app.newCaches(cfg.Cache, redisClient, logger)

	deps := service.Deps{
		Intent:   intent.NewService(extractor, cfg.Timeouts.Intent, logger),
		Geocoder: maps.NewGeocodeService(mapsClient, limiter, cfg.Maps.Region, cfg.Language.PrimaryLanguage),
		Places:   maps.NewPlacesService(mapsClient, limiter, cfg.Maps.Region),
		Narrator: narrationSvc,
		Languages: language.NewResolver(language.Options{
			Supported:       cfg.Language.Supported,
			PrimaryRegion:   cfg.Language.PrimaryRegion,
			PrimaryLanguage: cfg.Language.PrimaryLanguage,
			Default:         cfg.Language.Default,
		}),
		Gate:   backpressure.NewGate(cfg.Gate),
		Caches: caches,
		Logger: logger,
	}
	// Optional collaborators are assigned only when present; a nil pointer
	// stored in an interface would not read as absent.
	if redisClient != nil {
		deps.Sessions = session.NewStore(redisClient, session.DefaultTTL)
	}
	if db != nil {
		deps.Quota = quota.NewService(quota.NewStore(db, cfg.Quota.Daily))
	}

	app.Search, err = service.NewSearchOrchestrator(deps, service.Options{
		GeocodeTimeout: cfg.Timeouts.Geocode,
		PlacesTimeout:  cfg.Timeouts.Places,
		RadiusMeters:   cfg.Maps.RadiusMeters,
		PlacesLiveTTL:  cfg.Cache.PlacesLiveTTL,
		Mode:           cfg.Mode,
		Chips:          cfg.Chips,
		Radii:          cfg.Radii,
		Weights:        cfg.Ranking,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	logger.Info("search orchestrator ready",
		zap.Bool("redis", redisClient != nil),
		zap.Bool("quota", db != nil),
		zap.Bool("auth", app.Verifier != nil),
		zap.Bool("model", narrator != nil),
	)
	return app, nil
}

func (a *App) newCaches(cfg config.CachesConfig, client *redis.Client, logger *zap.Logger) service.Caches {
	return service.Caches{
		Intent:  tiered[intent.Parsed](a, "intent", cfg.Intent, cfg, client, logger),
		Geocode: tiered[[]maps.GeoCandidate](a, "geocode", cfg.Geocode, cfg, client, logger),
		Places:  tiered[[]venue.Venue](a, "places", cfg.Places, cfg, client, logger),
		Rank:    local[[]venue.Venue](a, "rank", cfg.Rank, cfg),
		Assist:  tiered[service.AssistEntry](a, "assist", cfg.Assist, cfg, client, logger),
	}
}

func local[V any](a *App, name string, c config.CacheConfig, all config.CachesConfig) *cache.Cache[V] {
	l := cache.New[V](cache.Options{
		Name:          name,
		Capacity:      c.Capacity,
		TTL:           c.TTL,
		SweepInterval: all.SweepInterval,
		Shards:        all.Shards,
	})
	a.sweepers = append(a.sweepers, l.Start)
	return l
}

func tiered[V any](a *App, name string, c config.CacheConfig, all config.CachesConfig, client *redis.Client, logger *zap.Logger) *cache.Tiered[V] {
	var remote *cache.RedisTier[V]
	if client != nil {
		remote = cache.NewRedisTier[V](client, "scout:cache:"+name+":")
	}
	return cache.NewTiered(local[V](a, name, c, all), remote, logger)
}

// Start runs the cache sweepers until ctx ends.
func (a *App) Start(ctx context.Context) {
	for _, start := range a.sweepers {
		start(ctx)
	}
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
