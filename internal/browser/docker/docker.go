// Package docker runs headless Chrome in pre-warmed containers and serves
// their DevTools endpoints to browser.Chrome.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// Provider owns the docker client and the container pool. It implements
// browser.EndpointProvider.
type Provider struct {
	cli  *client.Client
	pool *Pool
}

// New connects to the docker daemon from the environment, pulls the image
// and starts warming the pool.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	logger.Info("ensuring browser image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(pullCtx, cfg.Image, image.PullOptions{})
	if err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	logger.Info("browser image is ready")

	p := &Provider{
		cli:  cli,
		pool: NewPool(cli, cfg, logger),
	}
	p.pool.Start()
	return p, nil
}

func (p *Provider) Acquire(ctx context.Context) (string, func(), error) {
	url, release, err := p.pool.Acquire(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get browser from pool: %w", err)
	}
	return url, release, nil
}

// Close shuts down the pool and the docker client.
func (p *Provider) Close() error {
	p.pool.Stop()
	return p.cli.Close()
}
