package cfg

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to upper-cased flag names when reading the environment.
const EnvPrefix = "PORTFOLIO_"

// LegacyEnv maps flags to the bare variable names older deployments exported.
var LegacyEnv = map[string]string{
	"redis-url":        "REDIS_URL",
	"resend-api-key":   "RESEND_API_KEY",
	"github-token":     "GITHUB_TOKEN",
	"wakatime-api-key": "WAKATIME_API_KEY",
}

type App struct {
	LogJSON           bool
	LogLevel          string
	LogBackend        string
	HTTPPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	EnableTracing     bool
	PyroServer        string
	PyroTenantID      string
	OTLPEndpoint      string
	TraceSample       float64
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	ClientIPSource   string
	TrustedProxyHops int

	RedisURL      string
	StatsCacheTTL time.Duration

	ResendAPIKey string
	ContactTo    string
	ContactFrom  string

	GitHubToken    string
	GitHubUsername string
	WakaTimeAPIKey string

	SecretsSSMPrefix     string
	ContactArchiveBucket string
	ContactArchivePrefix string

	EnvFile string
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt/console (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.LogBackend, "log-backend", "slog", "slog|zerolog")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", false, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "lowest level logged with a stack: debug|info|warn|error, empty selects error")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")

	fs.StringVar(&c.ClientIPSource, "client-ip-source", "forwarded", "forwarded (first X-Forwarded-For, then X-Real-IP) | remote (trusted proxy hops)")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 1, "proxies in front of the server when client-ip-source=remote (0..10)")

	fs.StringVar(&c.RedisURL, "redis-url", "", "redis:// url for the stats cache, empty disables caching")
	fs.DurationVar(&c.StatsCacheTTL, "stats-cache-ttl", time.Hour, "how long stats payloads stay cached")

	fs.StringVar(&c.ResendAPIKey, "resend-api-key", "", "Resend API key, empty disables the contact form")
	fs.StringVar(&c.ContactTo, "contact-to", "", "address contact form messages are delivered to")
	fs.StringVar(&c.ContactFrom, "contact-from", "Portfolio Contact <onboarding@resend.dev>", "sender for contact form messages")

	fs.StringVar(&c.GitHubToken, "github-token", "", "GitHub token for contribution stats")
	fs.StringVar(&c.GitHubUsername, "github-username", "addynoven", "GitHub user whose stats are shown")
	fs.StringVar(&c.WakaTimeAPIKey, "wakatime-api-key", "", "WakaTime API key for coding stats")

	fs.StringVar(&c.SecretsSSMPrefix, "secrets-ssm-prefix", "", "ssm parameter path prefix to resolve unset secrets from")
	fs.StringVar(&c.ContactArchiveBucket, "contact-archive-bucket", "", "s3 bucket to archive accepted contact submissions in, empty disables")
	fs.StringVar(&c.ContactArchivePrefix, "contact-archive-prefix", "contact/submissions", "s3 key prefix for archived submissions")

	fs.StringVar(&c.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment, missing file is ignored")
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := explicitFlags(fs)

	fs.VisitAll(func(f *flag.Flag) {
		key := envKey(prefix, f.Name)
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		setFromEnv(fs, f, key, envVal, logf)
	})
}

// FillFromEnvAliases applies bare variable names from aliases to flags that
// neither the CLI nor the prefixed variable set.
// Precedence: cli flag > prefixed env > alias env > default.
func FillFromEnvAliases(fs *flag.FlagSet, prefix string, aliases map[string]string, logf func(string, ...any)) {
	explicit := explicitFlags(fs)

	for name, key := range aliases {
		f := fs.Lookup(name)
		if f == nil || explicit[name] {
			continue
		}
		if _, ok := os.LookupEnv(envKey(prefix, name)); ok {
			continue
		}
		if envVal, ok := os.LookupEnv(key); ok {
			setFromEnv(fs, f, key, envVal, logf)
		}
	}
}

func explicitFlags(fs *flag.FlagSet) map[string]bool {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	return explicit
}

func envKey(prefix, flagName string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(flagName), "-", "_")
}

func setFromEnv(fs *flag.FlagSet, f *flag.Flag, key, val string, logf func(string, ...any)) {
	prev := f.Value.String()
	if err := fs.Set(f.Name, val); err != nil {
		_ = fs.Set(f.Name, prev)
		if logf != nil {
			logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, val, err)
		}
	}
}
