package httpmw

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// UnknownClientIP is stored when no address can be derived from the request.
const UnknownClientIP = "unknown"

// ClientIPSource selects how the client address is derived.
type ClientIPSource string

const (
	// SourceForwarded takes the first X-Forwarded-For entry, then X-Real-IP,
	// then UnknownClientIP. Suited to platforms whose edge overwrites both headers.
	SourceForwarded ClientIPSource = "forwarded"

	// SourceRemote starts from RemoteAddr and only walks X-Forwarded-For
	// back through TrustedHops private-network proxies.
	SourceRemote ClientIPSource = "remote"
)

// ParseClientIPSource validates a configured source name.
func ParseClientIPSource(s string) (ClientIPSource, error) {
	switch src := ClientIPSource(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceForwarded, SourceRemote:
		return src, nil
	default:
		return "", fmt.Errorf("unknown client ip source %q (valid sources are forwarded|remote)", s)
	}
}

// ClientIPOptions configures client IP extraction behavior.
type ClientIPOptions struct {
	// Source defaults to SourceForwarded.
	Source ClientIPSource

	// TrustedHops applies to SourceRemote only. 0 = no proxies (X-Forwarded-For
	// ignored), 1 = single load balancer (rightmost entry), 2 = CDN + LB, etc.
	TrustedHops int
}

// ClientIP extracts the client address with default options and stores it in the context.
func ClientIP(next http.Handler) http.Handler {
	return ClientIPWithOptions(ClientIPOptions{})(next)
}

// ClientIPWithOptions returns middleware that extracts the client IP using the
// given options.
func ClientIPWithOptions(opts ClientIPOptions) func(http.Handler) http.Handler {
	extract := func(r *http.Request) string { return forwardedClientAddr(r) }
	if opts.Source == SourceRemote {
		extract = func(r *http.Request) string { return remoteClientAddr(r, opts.TrustedHops) }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithClientIP(r.Context(), extract(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// forwardedClientAddr trusts the edge: first X-Forwarded-For entry, then
// X-Real-IP. Values are used as given, only trimmed.
func forwardedClientAddr(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return UnknownClientIP
}

// remoteClientAddr only believes X-Forwarded-For when the peer is on a private
// network and trustedHops > 0, selecting the Nth-from-end entry. Untrusted
// forwarding headers are stripped so nothing downstream reads them.
func remoteClientAddr(r *http.Request, trustedHops int) string {
	if r.RemoteAddr == "" {
		return UnknownClientIP
	}

	clientAddr, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	ip := net.ParseIP(clientAddr)
	if ip == nil {
		return UnknownClientIP
	}

	if !ip.IsPrivate() || trustedHops <= 0 {
		stripForwarded(r)
		return clientAddr
	}

	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		idx := len(parts) - trustedHops
		if idx < 0 {
			// fewer entries than proxies, fail closed
			stripForwarded(r)
			return clientAddr
		}
		if candidate := strings.TrimSpace(parts[idx]); net.ParseIP(candidate) != nil {
			clientAddr = candidate
		}
	}
	return clientAddr
}

func stripForwarded(r *http.Request) {
	r.Header.Del("X-Forwarded-For")
	r.Header.Del("X-Forwarded-Proto")
	r.Header.Del("X-Real-IP")
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}
