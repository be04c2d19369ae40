package routing

import (
	"log/slog"
	"net/http"
	"net/http/httputil"

	apperrors "github.com/Devendra181/ECommerceSystem-sub000/pkg/errors"
	apphttp "github.com/Devendra181/ECommerceSystem-sub000/pkg/httputil"
)

// Proxy forwards requests to a cluster's destinations through the resolver.
type Proxy struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewProxy wires a proxy to a resolver. Reverse proxies are built once per
// destination, at resolution time.
func NewProxy(resolver *Resolver, l *slog.Logger) *Proxy {
	p := &Proxy{resolver: resolver, logger: l}
	resolver.buildProxy = p.newReverseProxy
	return p
}

func (p *Proxy) newReverseProxy(dest *Destination) *httputil.ReverseProxy {
	rp := httputil.NewSingleHostReverseProxy(dest.Target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.ErrorContext(r.Context(), "upstream request failed",
			slog.String("destination", dest.Key),
			slog.String("target", dest.Target.String()),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apphttp.WriteError(w, r, apperrors.ServiceUnavailable("upstream service failed to respond"), p.logger)
	}
	return rp
}

// Handler returns an http.Handler that proxies every request to the named
// cluster, load-balancing across its current destinations.
func (p *Proxy) Handler(cluster string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dest := p.resolver.Pick(cluster)
		if dest == nil || dest.proxy == nil {
			p.logger.WarnContext(r.Context(), "no healthy destinations for cluster",
				slog.String("cluster", cluster),
				slog.String("path", r.URL.Path),
			)
			apphttp.WriteError(w, r, apperrors.ServiceUnavailable("no healthy upstream instances available"), p.logger)
			return
		}

		dest.inflight.Add(1)
		defer dest.inflight.Add(-1)
		dest.proxy.ServeHTTP(w, r)
	})
}
