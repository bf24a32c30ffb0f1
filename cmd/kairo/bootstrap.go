package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"kairo-hq/guardrails/pkg/config"
	"kairo-hq/guardrails/pkg/guardrail/checker"
	"kairo-hq/guardrails/pkg/guardrail/manager"
	"kairo-hq/guardrails/pkg/guardrail/verify"
	"kairo-hq/guardrails/pkg/telemetry/metrics"
	"kairo-hq/guardrails/pkg/telemetry/tracing"
)

// engine bundles the components a command needs to run checks.
type engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	manager   *manager.Manager
	checker   *checker.Checker
	verifiers *verify.Set
	collector *metrics.Collector
	tracer    *tracing.Provider
	redis     *redis.Client
}

type engineOptions struct {
	// withTelemetry enables metrics and tracing from configuration.
	withTelemetry bool
	// verifiers replaces the configured HTTP verifiers.
	verifiers *verify.Set
}

// newEngine wires verifiers, the rule manager and the checker, then performs
// the initial rule load.
func newEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts engineOptions) (*engine, error) {
	e := &engine{cfg: cfg, logger: logger}

	if opts.withTelemetry {
		e.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		e.tracer = tracer
	}

	e.verifiers = opts.verifiers
	if e.verifiers == nil {
		var observer verify.CacheObserver
		if e.collector != nil {
			observer = e.collector
		}
		set, client, err := buildVerifiers(ctx, cfg, logger, observer)
		if err != nil {
			_ = e.Close(ctx)
			return nil, err
		}
		e.verifiers, e.redis = set, client
	}

	mgrOpts := []manager.Option{manager.WithLogger(logger)}
	if e.collector != nil {
		mgrOpts = append(mgrOpts, manager.WithRecorder(e.collector))
	}
	mgr, err := manager.NewFromConfig(&cfg.Rules, mgrOpts...)
	if err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	if err := mgr.Load(ctx); err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	e.manager = mgr

	checkerOpts := []checker.Option{
		checker.WithLogger(logger),
		checker.WithVerifiers(e.verifiers),
	}
	if e.collector != nil {
		checkerOpts = append(checkerOpts, checker.WithRecorder(e.collector))
	}
	if e.tracer != nil {
		checkerOpts = append(checkerOpts, checker.WithTracer(e.tracer.Tracer()))
	}
	chk, err := checker.New(mgr.Holder(), checkerConfig(&cfg.Checker), checkerOpts...)
	if err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	e.checker = chk

	return e, nil
}

func checkerConfig(cfg *config.CheckerConfig) *checker.Config {
	return checker.DefaultConfig().
		WithExternalTimeout(cfg.ExternalTimeout).
		WithVerifierFailureMode(checker.FailureMode(cfg.VerifierFailureMode)).
		WithMaxInputBytes(cfg.MaxInputBytes)
}

// buildVerifiers registers one HTTP verifier per configured capability. A
// Redis client is created only when some verifier caches verdicts.
func buildVerifiers(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer verify.CacheObserver) (*verify.Set, *redis.Client, error) {
	set := verify.NewSet()

	names := make([]string, 0, len(cfg.Verifiers))
	for name := range cfg.Verifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	var client *redis.Client
	for _, name := range names {
		vc := cfg.Verifiers[name]

		httpOpts := make([]verify.HTTPOption, 0, len(vc.Headers))
		for k, v := range vc.Headers {
			httpOpts = append(httpOpts, verify.WithHeader(k, v))
		}
		var v verify.Verifier = verify.NewHTTPVerifier(vc.Endpoint, vc.Timeout, httpOpts...)

		if vc.Cache.Enabled {
			if client == nil {
				var err error
				client, err = verify.ConnectRedis(ctx, verify.RedisOptions{
					Address:    cfg.Redis.Address,
					Password:   cfg.Redis.Password,
					DB:         cfg.Redis.DB,
					MaxRetries: cfg.Redis.MaxRetries,
				}, logger)
				if err != nil {
					return nil, nil, fmt.Errorf("failed to connect to redis for verifier %q: %w", name, err)
				}
			}
			cache := verify.NewRedisCache(client, cfg.Redis.KeyPrefix)
			caching := verify.NewCachingVerifier(name, v, cache, vc.Cache.TTL, logger)
			if observer != nil {
				caching = caching.WithObserver(observer)
			}
			v = caching
		}

		set.Register(name, v)
		logger.Debug("Registered verifier", "capability", name, "endpoint", vc.Endpoint, "cache", vc.Cache.Enabled)
	}

	return set, client, nil
}

// Close stops background work and flushes telemetry.
func (e *engine) Close(ctx context.Context) error {
	var errs []error
	if e.manager != nil {
		errs = append(errs, e.manager.Stop())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	if e.tracer != nil {
		errs = append(errs, e.tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
