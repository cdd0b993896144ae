package cfg

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/addynoven/portfolio-web/internal/log"
	"github.com/addynoven/portfolio-web/internal/xerrors"
)

// problems collects every invalid setting so one start attempt reports them all.
type problems []error

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Errorf(format, args...))
}

func (p *problems) port(name string, v int) {
	if v < 1 || v > 65535 {
		p.addf("invalid %s %d (must be 1..65535)", name, v)
	}
}

func (p *problems) level(name, v string) {
	if _, err := log.ParseLevel(v); err != nil {
		p.addf("invalid %s %q: %w", name, v, err)
	}
}

func (p *problems) email(name, v string) {
	if _, err := mail.ParseAddress(v); err != nil {
		p.addf("%s must be an email address (got %q)", name, v)
	}
}

func (p *problems) between(name string, v, lo, hi int) {
	if v < lo || v > hi {
		p.addf("%s must be %d..%d (got %d)", name, lo, hi, v)
	}
}

// Validate reports every out-of-range or malformed setting, joined.
// Missing credentials are never an error; the features they gate degrade.
func Validate(c App) error {
	var p problems

	p.port("HTTP_PORT", c.HTTPPort)
	p.port("ADMIN_PORT", c.AdminPort)
	if c.AdminPort == c.HTTPPort {
		p.addf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort)
	}

	p.level("LOG_LEVEL", c.LogLevel)
	if c.StacktraceLevel != "" {
		p.level("STACKTRACE_LEVEL", c.StacktraceLevel)
	}
	if _, err := log.ParseBackend(c.LogBackend); err != nil {
		p.addf("invalid LOG_BACKEND %q: %w", c.LogBackend, err)
	}
	if c.IncludeErrorLinks {
		p.between("MAX_ERROR_LINKS", c.MaxErrorLinks, 1, 64)
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		p.addf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample)
	}
	if c.EnableTracing {
		// the grpc exporter wants host:port without a scheme
		if c.OTLPEndpoint == "" {
			p.addf("OTLP_ENDPOINT required when ENABLE_TRACING=true")
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			p.addf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err)
		}
	}
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			p.addf("PYRO_SERVER required when ENABLE_PYROSCOPE=true")
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			p.addf("PYRO_SERVER must be a URL (got %q)", c.PyroServer)
		}
		if c.PyroTenantID == "" {
			p.addf("PYRO_TENANT required when ENABLE_PYROSCOPE=true")
		}
	}

	if c.ClientIPSource != "forwarded" && c.ClientIPSource != "remote" {
		p.addf("invalid CLIENT_IP_SOURCE %q (must be forwarded|remote)", c.ClientIPSource)
	}
	p.between("TRUSTED_PROXY_HOPS", c.TrustedProxyHops, 0, 10)

	if c.RedisURL != "" {
		if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			p.addf("REDIS_URL must be a redis:// or rediss:// url")
		}
	}
	if c.StatsCacheTTL < time.Second {
		p.addf("STATS_CACHE_TTL must be at least 1s (got %s)", c.StatsCacheTTL)
	}

	if c.ContactTo != "" {
		p.email("CONTACT_TO", c.ContactTo)
	}
	if c.ContactFrom == "" {
		p.addf("CONTACT_FROM is required")
	} else {
		p.email("CONTACT_FROM", c.ContactFrom)
	}
	if c.ContactArchiveBucket != "" && strings.Trim(c.ContactArchivePrefix, "/") == "" {
		p.addf("CONTACT_ARCHIVE_PREFIX is required when CONTACT_ARCHIVE_BUCKET is set")
	}

	if c.GitHubUsername == "" {
		p.addf("GITHUB_USERNAME is required")
	}
	if c.SecretsSSMPrefix != "" && !strings.HasPrefix(c.SecretsSSMPrefix, "/") {
		p.addf("SECRETS_SSM_PREFIX must start with / (got %q)", c.SecretsSSMPrefix)
	}

	return xerrors.Join(p...)
}
