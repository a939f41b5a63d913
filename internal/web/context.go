package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/catalogsync/internal/core"
)

// withRequestMetadata adds the client IP and User-Agent that audit entries
// record.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}

// clientIP returns RemoteAddr without its port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
