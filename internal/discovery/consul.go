// Package discovery registers this service with Consul and resolves other
// services by name, grounded on the same agent-registration/health-query
// idiom the rest of the platform's services use.
package discovery

import (
	"fmt"
	"log"

	"adaptivetest/internal/config"

	"github.com/hashicorp/consul/api"
)

type ServiceRegistry struct {
	client *api.Client
	cfg    *config.Config
}

func NewServiceRegistry(cfg *config.Config) (*ServiceRegistry, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = cfg.Consul.ConsulAddress

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &ServiceRegistry{client: client, cfg: cfg}, nil
}

// Register advertises this instance under its service id with an HTTP
// health check Consul polls directly.
func (sr *ServiceRegistry) Register() error {
	registration := &api.AgentServiceRegistration{
		ID:      sr.cfg.Server.ServiceID,
		Name:    sr.cfg.Server.ServiceName,
		Address: sr.cfg.Server.ServiceAddress,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", sr.cfg.Server.ServiceAddress, sr.cfg.Server.Port),
			Interval: "10s",
			Timeout:  "5s",
		},
		Tags: []string{"adaptive", "testing", "http"},
		Meta: map[string]string{"protocol": "http"},
	}

	if err := sr.client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service with consul: %w", err)
	}
	log.Printf("[discovery] registered %s (%s) with consul", sr.cfg.Server.ServiceName, sr.cfg.Server.ServiceID)
	return nil
}

func (sr *ServiceRegistry) Deregister() error {
	if err := sr.client.Agent().ServiceDeregister(sr.cfg.Server.ServiceID); err != nil {
		return fmt.Errorf("failed to deregister service from consul: %w", err)
	}
	log.Printf("[discovery] deregistered %s from consul", sr.cfg.Server.ServiceID)
	return nil
}

// FindService looks up healthy instances of a named service.
func (sr *ServiceRegistry) FindService(serviceName string) ([]*api.ServiceEntry, error) {
	services, meta, err := sr.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find service %s: %w", serviceName, err)
	}
	log.Printf("[discovery] found %d instance(s) of %s (consul index %d)", len(services), serviceName, meta.LastIndex)
	if len(services) == 0 {
		return nil, fmt.Errorf("no healthy instances of service %s found", serviceName)
	}
	return services, nil
}

// GetServiceAddress resolves the first healthy "host:port" for a service.
func (sr *ServiceRegistry) GetServiceAddress(serviceName string) (string, error) {
	services, err := sr.FindService(serviceName)
	if err != nil {
		return "", err
	}
	svc := services[0]
	address := svc.Service.Address
	if address == "" {
		address = svc.Node.Address
	}
	return fmt.Sprintf("%s:%d", address, svc.Service.Port), nil
}
