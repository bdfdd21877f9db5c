package app

import (
	"context"
	"fmt"

	"mcphub/pkg/logging"
)

// Application bootstraps and runs one hub process.
//
// NewApplication initializes logging and wires the services; Run starts them,
// blocks until its context ends and then shuts everything down.
type Application struct {
	config   *Config
	services *Services
	notify   Notifier
}

// Option configures an Application.
type Option func(*Application)

// WithNotifier replaces the service manager notifier.
func WithNotifier(n Notifier) Option {
	return func(a *Application) {
		a.notify = n
	}
}

// NewApplication initializes logging and constructs all services for cfg.
func NewApplication(cfg *Config, opts ...Option) (*Application, error) {
	if err := cfg.resolve(); err != nil {
		return nil, err
	}

	logging.Init(logging.Options{
		Level:  cfg.logLevel(),
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a := &Application{
		config:   cfg,
		services: services,
		notify:   SystemdNotifier,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Services returns the wired services.
func (a *Application) Services() *Services {
	return a.services
}

// Run starts the hub, registers it in the workspace registry and serves until ctx
// is done. Startup failures undo the steps that already completed. A
// configuration problem is returned as config.ConfigurationError.
func (a *Application) Run(ctx context.Context) error {
	s := a.services

	if err := s.Registry.Initialize(ctx); err != nil {
		return err
	}
	if removed := s.Registry.CleanupStaleEntries(ctx); removed > 0 {
		logging.Info("Bootstrap", "Cleaned up %d stale workspace entries", removed)
	}

	if err := s.Hub.Initialize(ctx); err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize hub")
		a.shutdown()
		return err
	}

	if err := s.ControlServer.Start(ctx); err != nil {
		a.shutdown()
		return err
	}

	if err := s.Registry.Register(ctx, s.ControlServer.Port()); err != nil {
		a.shutdown()
		return err
	}
	s.Registry.StartWatching(ctx)

	a.notifyState(StateReady)
	logging.Info("Bootstrap", "Hub for %s ready on %s", s.Registry.Identity(), s.ControlServer.Addr())

	<-ctx.Done()

	logging.Info("Bootstrap", "Shutting down")
	a.notifyState(StateStopping)
	a.shutdown()
	return nil
}

// shutdown stops the control server, the hub and the registry in that order.
// Each step runs regardless of earlier failures.
func (a *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()

	s := a.services
	if err := s.ControlServer.Stop(ctx); err != nil {
		logging.Error("Bootstrap", err, "Failed to stop control server")
	}
	if err := s.Hub.Shutdown(ctx); err != nil {
		logging.Error("Bootstrap", err, "Failed to shut down hub")
	}
	s.Registry.Shutdown(ctx)
}

func (a *Application) notifyState(state string) {
	if a.notify == nil {
		return
	}
	if err := a.notify(state); err != nil {
		logging.Warn("Bootstrap", "Failed to notify service manager (%s): %v", state, err)
	}
}
