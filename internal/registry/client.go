// Package registry is the client-side view of the engine's model
// catalog. The engine is authoritative over download state, so every
// mutating call is followed by a fresh catalog fetch and the caller
// replaces its list wholesale.
package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"whisper-gui/internal/domain"
	"whisper-gui/internal/engine"
)

// Client queries and mutates the engine's model registry. It does not
// serialize concurrent mutations; that is the coordinator's job.
type Client struct {
	engine engine.Engine
	logger *zap.Logger
}

// New creates a registry client backed by the given engine.
func New(e engine.Engine, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{engine: e, logger: logger}
}

// List fetches the full catalog with local download state.
func (c *Client) List(ctx context.Context) ([]domain.ModelAvailability, error) {
	models, err := c.engine.ListModels(ctx)
	if err != nil {
		c.logger.Warn("model catalog fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	return models, nil
}

// Download fetches a model and returns the refreshed catalog once the
// download settles. On failure the prior list remains valid.
func (c *Client) Download(ctx context.Context, name string) ([]domain.ModelAvailability, error) {
	if err := c.engine.DownloadModel(ctx, name); err != nil {
		c.logger.Warn("model download failed", zap.String("model", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	return c.List(ctx)
}

// Delete removes a model and returns the refreshed catalog. On failure
// the prior list remains valid.
func (c *Client) Delete(ctx context.Context, name string) ([]domain.ModelAvailability, error) {
	if err := c.engine.DeleteModel(ctx, name); err != nil {
		c.logger.Warn("model delete failed", zap.String("model", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrDeleteFailed, err)
	}
	return c.List(ctx)
}
