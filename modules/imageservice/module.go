package imageservice

import (
	"context"
	"fmt"

	"github.com/actyvystom/cloudinary-demo/modules/cloudinary"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the remote media client shared by the upload and query bridges.
type Module struct {
	cfg     cloudinary.Config
	opts    []cloudinary.Option
	client  *cloudinary.Client
	service *Service
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new image service module for the given account.
func NewModule(cfg cloudinary.Config, logger types.Logger, opts ...cloudinary.Option) *Module {
	return &Module{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "image-service"
}

// Start builds the remote client. Missing credentials fail the start.
func (m *Module) Start(_ context.Context) error {
	client, err := cloudinary.NewClient(m.cfg, m.opts...)
	if err != nil {
		return fmt.Errorf("image-service: %w", err)
	}
	m.client = client
	m.service = NewService(client, m.logger)

	m.logger.Info("Image service module started", "cloud_name", client.CloudName())
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Image service module stopped")
	return nil
}

// Health reports whether the remote client is configured.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.client == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "remote client not initialized",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "ready",
		Details: map[string]any{"cloud_name": m.client.CloudName()},
	}
}

// Service returns the image service instance.
func (m *Module) Service() *Service {
	return m.service
}
