package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"mcphub/internal/config"
	"mcphub/internal/hub"
	"mcphub/internal/orchestrator"
	"mcphub/internal/server"
	"mcphub/internal/workspace"
)

// Services holds the long-lived components of a running hub process.
type Services struct {
	Registry      *workspace.Registry
	Hub           *hub.Hub
	ControlServer *server.ControlServer
	Metrics       *prometheus.Registry
}

// InitializeServices constructs and wires every component. Nothing is started;
// Application.Run drives the lifecycle.
func InitializeServices(cfg *Config) (*Services, error) {
	registry, err := workspace.New(workspace.Options{
		StateDir: cfg.StateDir,
		Identity: cfg.Workspace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace registry: %w", err)
	}

	metricsRegistry := prometheus.NewRegistry()
	metrics := orchestrator.NewMetrics()
	if err := metrics.Register(metricsRegistry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	h := hub.New(config.NewManager(cfg.ConfigPath), hub.Options{
		Watch:        cfg.Watch,
		Orchestrator: []orchestrator.Option{orchestrator.WithMetrics(metrics)},
	})

	controlServer := server.New(h, registry, server.Options{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Version:  cfg.Version,
		Gatherer: metricsRegistry,
	})

	return &Services{
		Registry:      registry,
		Hub:           h,
		ControlServer: controlServer,
		Metrics:       metricsRegistry,
	}, nil
}
