package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"

	"github.com/addynoven/portfolio-web/internal/cache"
	"github.com/addynoven/portfolio-web/internal/cfg"
	"github.com/addynoven/portfolio-web/internal/contact"
	"github.com/addynoven/portfolio-web/internal/health"
	"github.com/addynoven/portfolio-web/internal/httpmw"
	"github.com/addynoven/portfolio-web/internal/httpserver"
	"github.com/addynoven/portfolio-web/internal/log"
	"github.com/addynoven/portfolio-web/internal/metrics"
	"github.com/addynoven/portfolio-web/internal/opshttp"
	"github.com/addynoven/portfolio-web/internal/otelx"
	"github.com/addynoven/portfolio-web/internal/prof"
	"github.com/addynoven/portfolio-web/internal/ratelimit"
	"github.com/addynoven/portfolio-web/internal/secrets"
	"github.com/addynoven/portfolio-web/internal/sitehandler"
	"github.com/addynoven/portfolio-web/internal/stats"
	v "github.com/addynoven/portfolio-web/internal/version"
	"github.com/addynoven/portfolio-web/internal/webassets"
)

const (
	upstreamTimeout = 10 * time.Second
	drainPeriod     = 15 * time.Second
)

func main() {
	// background loops run until main returns, signals only start the drain
	ctx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags, then the dotenv file and environment
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	logf := func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	if err := cfg.LoadDotEnv(conf.EnvFile); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, logf)
	cfg.FillFromEnvAliases(flag.CommandLine, cfg.EnvPrefix, cfg.LegacyEnv, logf)

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging, levels were validated above
	lvl, _ := log.ParseLevel(conf.LogLevel)
	var stackLvl *slog.Level
	if conf.StacktraceLevel != "" {
		l, _ := log.ParseLevel(conf.StacktraceLevel)
		stackLvl = &l
	}
	backend, _ := log.ParseBackend(conf.LogBackend)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Commit:            vi.ShortCommit(),
		Backend:           backend,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", v.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application", append(vi.LogValues(),
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"log_backend", conf.LogBackend,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"client_ip_source", conf.ClientIPSource,
		"redis_configured", conf.RedisURL != "",
		"stats_cache_ttl", conf.StatsCacheTTL.String(),
		"github_username", conf.GitHubUsername,
		"secrets_ssm_prefix", conf.SecretsSSMPrefix,
		"contact_archive_bucket", conf.ContactArchiveBucket,
	)...)

	// Setup otel for tracing, the collector runs next to the server so the exporter is insecure
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: v.Component,
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, continuing without trace export")
		shutdownOTEL = func(context.Context) error { return nil }
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, v.Component, vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": v.Component,
			"version":   vi.Version,
			"commit":    vi.ShortCommit(),
		},
		OnActive: m.SetProfilingActive,
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}

	// AWS is only touched when a feature that needs it is configured
	var awsCfg *aws.Config
	if conf.SecretsSSMPrefix != "" || conf.ContactArchiveBucket != "" {
		c, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config, ssm secrets and contact archive disabled")
		} else {
			awsCfg = &c
		}
	}

	if awsCfg != nil && conf.SecretsSSMPrefix != "" {
		resolver := secrets.NewSSMResolver(ssm.NewFromConfig(*awsCfg), conf.SecretsSSMPrefix, L)
		err := resolver.Fill(ctx, map[string]*string{
			"resend-api-key":   &conf.ResendAPIKey,
			"github-token":     &conf.GitHubToken,
			"wakatime-api-key": &conf.WakaTimeAPIKey,
		})
		if err != nil {
			L.Error(ctx, err, "failed to resolve some secrets from ssm", "prefix", conf.SecretsSSMPrefix)
		}
	}

	// Stats cache, a missing or unreachable redis only disables caching
	redisStore, err := cache.NewRedisStore(conf.RedisURL)
	if err != nil {
		L.Error(ctx, err, "invalid redis url, stats caching disabled")
	}
	var store cache.Store
	if redisStore != nil {
		defer redisStore.Close()
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisStore.Ping(pctx); err != nil {
			L.Warn(ctx, "redis ping failed, stats will be fetched live until it recovers", "err", err)
		}
		cancel()
		store = redisStore
	}
	statsCache := cache.NewAside(store,
		cache.WithLogger(L),
		cache.WithObserver(m.ObserveCacheOp),
	)

	upstreamClient := otelx.HTTPClient(upstreamTimeout)
	observeUpstream := func(provider string, elapsed time.Duration, err error) {
		m.ObserveStatsUpstream(provider, elapsed.Seconds())
		if err != nil {
			m.IncStatsUpstreamError(provider)
		}
	}

	statsAPI := stats.NewAPI(stats.Options{
		Logger: L,
		Cache:  statsCache,
		TTL:    conf.StatsCacheTTL,
		GitHub: stats.NewGitHubClient(stats.GitHubOptions{
			Token:      conf.GitHubToken,
			Username:   conf.GitHubUsername,
			HTTPClient: upstreamClient,
			Logger:     L,
			Observe:    observeUpstream,
		}),
		WakaTime: stats.NewWakaTimeClient(stats.WakaTimeOptions{
			APIKey:     conf.WakaTimeAPIKey,
			HTTPClient: upstreamClient,
			Observe:    observeUpstream,
		}),
	})

	// Contact form
	submissions := ratelimit.NewSubmissionLimiter(ctx,
		ratelimit.WithOnSubmissionDenied(func(r ratelimit.Reason) {
			m.IncSubmissionDenied(string(r))
		}),
	)
	go reportSubmissionsTracked(ctx, submissions, m)

	var sender contact.Sender
	resend, err := contact.NewResendSender(contact.ResendOptions{
		APIKey:     conf.ResendAPIKey,
		From:       conf.ContactFrom,
		To:         conf.ContactTo,
		HTTPClient: upstreamClient,
	})
	switch {
	case err != nil:
		L.Error(ctx, err, "failed to create email sender, contact form disabled")
	case resend == nil:
		L.Warn(ctx, "no resend api key configured, contact form disabled")
	default:
		sender = resend
	}

	var archiver contact.Archiver
	if awsCfg != nil {
		if a := contact.NewS3Archiver(s3.NewFromConfig(*awsCfg), conf.ContactArchiveBucket, conf.ContactArchivePrefix); a != nil {
			archiver = a
		}
	}

	contactAPI, err := contact.NewAPI(contact.Options{
		Logger:    L,
		Limiter:   submissions,
		Sender:    sender,
		Archiver:  archiver,
		OnOutcome: m.IncContactSubmission,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create contact api")
		os.Exit(1)
	}

	// Static site, maintenance page when no export is embedded
	siteFS, haveSite := webassets.SiteFS()
	if !haveSite {
		L.Warn(ctx, "no embedded site export, serving maintenance page")
	}
	siteHandler, err := sitehandler.New(sitehandler.Options{
		Logger:     L,
		Site:       siteFS,
		FallbackFS: webassets.FallbackFS(),
	})
	if err != nil {
		L.Error(ctx, err, "failed to create site handler")
		os.Exit(1)
	}

	// setup toggle for server shutdown
	var gate health.ShutdownGate

	readiness := health.All(
		gate.Probe(),
		health.Named("site", health.CheckFunc(siteHandler.Ready)),
	)

	limiter := ratelimit.New(ctx,
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// only log the first time an ip is denied each time it is cleaned from the map
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
		}),
	)

	ipSource, _ := httpmw.ParseClientIPSource(conf.ClientIPSource)

	siteHTTPStop, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  limiter.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{
			Source:      ipSource,
			TrustedHops: conf.TrustedProxyHops,
		},
		Health:    health.Fixed(true, ""),
		Readiness: readiness,
		APIRoutes: func(r chi.Router) {
			contactAPI.RegisterRoutes(r)
			statsAPI.RegisterRoutes(r)
		},
		SiteHandler: siteHandler,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener")
		os.Exit(1)
	}

	// admin listener for metrics, health checks and pprof, rejects public clients
	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		Build:       vi,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		_ = siteHTTPStop(context.Background())
		os.Exit(1)
	}

	if err := notifySystemd(); err != nil {
		// worst case systemd kills the process after its start timeout
		L.Debug(ctx, "systemd readiness not sent", "err", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	<-sigCtx.Done()
	stop()
	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so the load balancer stops routing before listeners close
	gate.Set("shutting down")
	L.Info(context.Background(), "draining", "period", drainPeriod.String())

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(drainPeriod):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

// reportSubmissionsTracked publishes the submission limiter's map sizes
// until ctx is cancelled.
func reportSubmissionsTracked(ctx context.Context, l *ratelimit.SubmissionLimiter, m *metrics.ServerMetrics) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		emails, ips := l.Len()
		m.SetSubmissionTracked(emails + ips)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when the unit is Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: dial: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		_ = conn.Close()
		return fmt.Errorf("systemd notify: write: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify: close: %w", err)
	}
	return nil
}
