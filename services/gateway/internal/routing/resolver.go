package routing

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http/httputil"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// Registry is the slice of the service registry client the resolver needs.
type Registry interface {
	ResolveAll(ctx context.Context, serviceName string) ([]string, error)
}

// Cluster declares one routable backend. A cluster without a
// RegistryServiceName is left untouched by the resolver.
type Cluster struct {
	Name                string
	RegistryServiceName string
}

// Destination is one resolved backend instance.
type Destination struct {
	Key    string
	Target *url.URL

	proxy    *httputil.ReverseProxy
	inflight atomic.Int64
}

// Resolver keeps each cluster's destination set in sync with the service
// registry. A background refresher re-resolves on a fixed cadence, backing
// off to a longer cadence after an error.
type Resolver struct {
	registry    Registry
	clusters    []Cluster
	interval    time.Duration
	errInterval time.Duration
	logger      *slog.Logger

	mu           sync.RWMutex
	destinations map[string][]*Destination

	buildProxy func(*Destination) *httputil.ReverseProxy
}

// NewResolver creates a resolver for the given clusters. Call Refresh once
// at startup and Run for continuous refreshing.
func NewResolver(registry Registry, clusters []Cluster, interval, errInterval time.Duration, logger *slog.Logger) *Resolver {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if errInterval <= 0 {
		errInterval = 3 * interval
	}
	return &Resolver{
		registry:     registry,
		clusters:     clusters,
		interval:     interval,
		errInterval:  errInterval,
		logger:       logger,
		destinations: make(map[string][]*Destination),
	}
}

// Refresh re-resolves every registry-backed cluster. A cluster that fails
// to resolve keeps its previous destination set; a cluster that resolves to
// zero instances is emptied, which makes bound routes serve 503.
func (r *Resolver) Refresh(ctx context.Context) error {
	var firstErr error

	for _, cluster := range r.clusters {
		if cluster.RegistryServiceName == "" {
			continue
		}

		urls, err := r.registry.ResolveAll(ctx, cluster.RegistryServiceName)
		if err != nil {
			r.logger.WarnContext(ctx, "cluster resolution failed, keeping previous destinations",
				slog.String("cluster", cluster.Name),
				slog.String("service", cluster.RegistryServiceName),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		dests := make([]*Destination, 0, len(urls))
		for i, raw := range urls {
			target, err := url.Parse(raw)
			if err != nil {
				r.logger.WarnContext(ctx, "skipping unparsable instance URL",
					slog.String("cluster", cluster.Name),
					slog.String("url", raw),
				)
				continue
			}
			dest := &Destination{
				Key:    fmt.Sprintf("%s-%d", cluster.RegistryServiceName, i+1),
				Target: target,
			}
			if r.buildProxy != nil {
				dest.proxy = r.buildProxy(dest)
			}
			dests = append(dests, dest)
		}

		r.mu.Lock()
		r.destinations[cluster.Name] = dests
		r.mu.Unlock()
	}

	return firstErr
}

// Run refreshes on a fixed cadence until ctx is cancelled. Errors stretch
// the cadence to the error interval.
func (r *Resolver) Run(ctx context.Context) {
	interval := r.interval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := r.Refresh(ctx); err != nil {
			interval = r.errInterval
		} else {
			interval = r.interval
		}
		timer.Reset(interval)
	}
}

// Destinations returns the current destination set for a cluster.
func (r *Resolver) Destinations(cluster string) []*Destination {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.destinations[cluster]
}

// Pick chooses a destination by power-of-two-choices over in-flight
// request counts. Returns nil when the cluster has no destinations.
func (r *Resolver) Pick(cluster string) *Destination {
	dests := r.Destinations(cluster)
	switch len(dests) {
	case 0:
		return nil
	case 1:
		return dests[0]
	}

	i := rand.Intn(len(dests))
	j := rand.Intn(len(dests) - 1)
	if j >= i {
		j++
	}

	if dests[j].inflight.Load() < dests[i].inflight.Load() {
		return dests[j]
	}
	return dests[i]
}
