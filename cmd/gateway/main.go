package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"pw-gateway/config"
	"pw-gateway/httpapi"
	"pw-gateway/limits"
	"pw-gateway/logging"
	"pw-gateway/metrics"
	"pw-gateway/middleware/clientip"
	"pw-gateway/middleware/ratelimit"
	"pw-gateway/middleware/ratelimit/infra"
	"pw-gateway/policy"
	"pw-gateway/secret"
)

// version é sobrescrito no build com -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pw-gateway", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.StringP("config", "c", config.DefaultPath, "path to the YAML configuration file")
	check := fs.Bool("check", false, "validate the configuration and exit")
	showVersion := fs.BoolP("version", "v", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		printError(stderr, err)
		return 1
	}
	if *check {
		color.New(color.FgGreen).Fprintf(stdout, "configuration %s is valid\n", *configPath)
		return 0
	}

	log, closer, err := logging.New(cfg.LogLevel, cfg.LogTarget)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	defer func() { _ = closer.Close() }()

	if err := serve(ctx, cfg, log); err != nil {
		log.WithError(err).Error("server error")
		return 1
	}
	return 0
}

// printError destaca o relatório de validação para o operador.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	var verr *policy.ValidationError
	if errors.As(err, &verr) {
		red.Fprintln(w, "Configuration validation failed:")
		for i, v := range verr.Violations {
			fmt.Fprintf(w, "  %s %s\n", color.YellowString("%d.", i+1), v.Error())
		}
		fmt.Fprintln(w, "\nPlease correct these issues and try again.")
		return
	}
	red.Fprintf(w, "error: %v\n", err)
}

func serve(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis-url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		if cfg.RateLimit.StatsRedis {
			return fmt.Errorf("redis stats ping: %w", err)
		}
		log.WithError(err).Warn("redis is unreachable, secret operations will fail until it is back")
	}

	lp := cfg.Limits()
	resolver := limits.NewResolver(lp, limits.WithLogger(log))
	maxBody := limits.ComputeMaxBodyLimit(lp)
	bodyLimit := limits.BodyLimit(maxBody)

	storage := secret.NewRedisStorage(rdb)
	m := metrics.New(metrics.Info{
		Version:           version,
		MessageMaxLength:  cfg.MessageMaxLength,
		FileMaxSize:       cfg.FileMaxSize,
		FileUploadEnabled: cfg.FileUploadEnabled,
		IPLimitsEnabled:   resolver.Enabled(),
		BodyLimit:         bodyLimit,
	}, storage)

	secrets := secret.NewService(storage, cfg.FileUploadEnabled,
		secret.WithLogger(log),
		secret.WithObserver(m.ObserveSecret),
	)

	mws := []func(http.Handler) http.Handler{
		clientip.Middleware(clientip.Options{Trust: cfg.Trust(), Logger: log}),
		ratelimit.BypassMiddleware(resolver.Whitelisted),
	}

	var store *infra.Store
	totals := infra.NewMemoryStatsStore(infra.WithTrackRoutes(false))
	if rl := cfg.RateLimitPolicy(); rl.Enabled {
		store = infra.NewStore(infra.PerMinute(rl.RequestsPerMinute), int(rl.BurstSize),
			infra.WithIdleTTL(cfg.RateLimit.IdleTTL),
			infra.WithMaxKeys(cfg.RateLimit.MaxKeys),
		)
		stats := infra.MultiStats{m.RateLimitStats(), totals}
		if cfg.RateLimit.StatsRedis {
			stats = append(stats, infra.NewRedisStatsStore(rdb,
				infra.WithStatsTTL(cfg.RateLimit.StatsTTL),
				infra.WithStatsTrackKeys(cfg.RateLimit.StatsTrackKeys),
			))
		}
		store.StartJanitor(ctx)
		mws = append(mws, ratelimit.Middleware(ratelimit.Options{
			Store:               store,
			Stats:               stats,
			RejectStatus:        http.StatusTooManyRequests,
			AddRateLimitHeaders: cfg.RateLimit.AddHeaders,
			Logger:              log,
		}))
	}
	mws = append(mws, ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
	}))

	h := httpapi.NewRouter(httpapi.Options{
		Secrets:           secrets,
		Limits:            resolver,
		FileUploadEnabled: cfg.FileUploadEnabled,
		BodyLimit:         int64(bodyLimit),
		Version:           version,
		Metrics:           m.Handler(),
		Middlewares:       mws,
		Logger:            log,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logStartup(log, cfg, resolver, maxBody, bodyLimit, store)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logShutdown(log, store, totals)
	return nil
}

// logShutdown resume as decisões do rate limit desde a subida do processo.
func logShutdown(log logrus.FieldLogger, store *infra.Store, totals *infra.MemoryStatsStore) {
	if store == nil {
		log.Info("server stopped")
		return
	}
	c := totals.Total()
	log.WithFields(logrus.Fields{
		"admitted":   c.Admitted,
		"rejected":   c.Rejected,
		"bypassed":   c.Bypassed,
		"unresolved": c.Unresolved,
		"keys":       store.Len(),
	}).Info("server stopped")
}

func logStartup(log logrus.FieldLogger, cfg config.Config, resolver *limits.Resolver, maxBody uint64, bodyLimit int, store *infra.Store) {
	log.WithField("version", version).Infof("pw listening on %s", cfg.Listen)
	log.Infof("config: %s", cfg)

	trust := "legacy (proxy headers trusted)"
	if t := cfg.Trust(); t != nil && t.Enabled {
		trust = fmt.Sprintf("%d trusted proxies", len(t.TrustedProxies))
	}
	whitelist := 0
	if cfg.IPLimits != nil {
		whitelist = len(cfg.IPLimits.Whitelist)
	}
	log.WithFields(logrus.Fields{
		"enabled":         resolver.Enabled(),
		"whitelist":       whitelist,
		"trust":           trust,
		"max_body_limit":  maxBody,
		"http_body_limit": bodyLimit,
	}).Info("ip limits")

	if store != nil {
		log.WithFields(logrus.Fields{
			"rpm":         cfg.RateLimit.RequestsPerMinute,
			"rps":         store.RPS(),
			"burst":       store.Burst(),
			"max_keys":    store.MaxKeys(),
			"cleanup":     store.CleanupEvery(),
			"stats_redis": cfg.RateLimit.StatsRedis,
		}).Info("rate limit")
	} else {
		log.Info("rate limit: disabled")
	}
	log.WithFields(logrus.Fields{
		"max":             cfg.ConcurrencyMax,
		"acquire_timeout": cfg.ConcurrencyTimeout,
	}).Info("concurrency")
}
