// Package registry wraps the Consul catalog for service self-registration
// and caller-side resolution.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"

	consul "github.com/hashicorp/consul/api"
)

// ErrNoHealthyInstances is returned by ResolveOne when no passing instance
// of the requested service exists.
var ErrNoHealthyInstances = errors.New("no healthy instances")

// Config holds the self-registration settings for one service process.
type Config struct {
	Address             string   `env:"CONSUL_ADDRESS" envDefault:"localhost:8500"`
	ServiceID           string   `env:"CONSUL_SERVICE_ID"`
	ServiceName         string   `env:"CONSUL_SERVICE_NAME"`
	ServiceAddress      string   `env:"CONSUL_SERVICE_ADDRESS" envDefault:"localhost"`
	ServicePort         int      `env:"CONSUL_SERVICE_PORT"`
	HealthCheckEndpoint string   `env:"CONSUL_HEALTH_ENDPOINT" envDefault:"/health"`
	Tags                []string `env:"CONSUL_TAGS" envSeparator:","`
}

// Client talks to a Consul agent.
type Client struct {
	consul *consul.Client
	logger *slog.Logger
}

// NewClient connects to the Consul agent at the given address.
func NewClient(address string, logger *slog.Logger) (*Client, error) {
	cfg := consul.DefaultConfig()
	cfg.Address = address

	c, err := consul.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	return &Client{consul: c, logger: logger}, nil
}

// Register registers this process with the catalog. Any prior registration
// under the same service ID is removed first so restarts never leave ghost
// entries behind.
func (c *Client) Register(ctx context.Context, cfg Config) error {
	if err := c.consul.Agent().ServiceDeregister(cfg.ServiceID); err != nil {
		c.logger.DebugContext(ctx, "no prior registration to remove",
			slog.String("service_id", cfg.ServiceID),
		)
	}

	scheme := "http"
	if slices.Contains(cfg.Tags, "https") {
		scheme = "https"
	}
	healthURL := fmt.Sprintf("%s://%s:%d%s", scheme, cfg.ServiceAddress, cfg.ServicePort, cfg.HealthCheckEndpoint)

	reg := &consul.AgentServiceRegistration{
		ID:      cfg.ServiceID,
		Name:    cfg.ServiceName,
		Address: cfg.ServiceAddress,
		Port:    cfg.ServicePort,
		Tags:    cfg.Tags,
		Check: &consul.AgentServiceCheck{
			HTTP:                           healthURL,
			Interval:                       "10s",
			Timeout:                        "5s",
			TLSSkipVerify:                  true,
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := c.consul.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("register service %s: %w", cfg.ServiceName, err)
	}

	c.logger.InfoContext(ctx, "service registered",
		slog.String("service_id", cfg.ServiceID),
		slog.String("service_name", cfg.ServiceName),
		slog.String("health_url", healthURL),
	)
	return nil
}

// Ping verifies the agent is reachable and the cluster has a leader.
func (c *Client) Ping(ctx context.Context) error {
	opts := (&consul.QueryOptions{}).WithContext(ctx)
	leader, err := c.consul.Status().LeaderWithQueryOptions(opts)
	if err != nil {
		return fmt.Errorf("consul status: %w", err)
	}
	if leader == "" {
		return errors.New("consul cluster has no leader")
	}
	return nil
}

// Deregister removes this process from the catalog on graceful shutdown.
func (c *Client) Deregister(ctx context.Context, serviceID string) error {
	c.logger.InfoContext(ctx, "deregistering service", slog.String("service_id", serviceID))
	if err := c.consul.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("deregister service %s: %w", serviceID, err)
	}
	return nil
}

// ResolveOne returns the base URI of one passing instance of the named
// service, chosen uniformly at random.
func (c *Client) ResolveOne(ctx context.Context, serviceName string) (string, error) {
	instances, err := c.passing(ctx, serviceName)
	if err != nil {
		return "", err
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoHealthyInstances, serviceName)
	}
	return buildBaseURL(instances[rand.Intn(len(instances))]), nil
}

// ResolveAll returns the base URIs of every passing instance. An empty
// slice is a valid result.
func (c *Client) ResolveAll(ctx context.Context, serviceName string) ([]string, error) {
	instances, err := c.passing(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(instances))
	for _, inst := range instances {
		urls = append(urls, buildBaseURL(inst))
	}
	return urls, nil
}

func (c *Client) passing(ctx context.Context, serviceName string) ([]*consul.ServiceEntry, error) {
	opts := (&consul.QueryOptions{}).WithContext(ctx)
	entries, _, err := c.consul.Health().Service(serviceName, "", true, opts)
	if err != nil {
		return nil, fmt.Errorf("query consul for %s: %w", serviceName, err)
	}
	return entries, nil
}

// buildBaseURL derives the scheme from the instance tags: https iff the
// instance is tagged "https".
func buildBaseURL(entry *consul.ServiceEntry) string {
	scheme := "http"
	if slices.Contains(entry.Service.Tags, "https") {
		scheme = "https"
	}

	host := entry.Service.Address
	if host == "" {
		host = entry.Node.Address
	}

	return fmt.Sprintf("%s://%s:%d", scheme, host, entry.Service.Port)
}
