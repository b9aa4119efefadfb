package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// instance is a running browser container and the address DevTools
// listens on.
type instance struct {
	id   string
	host string
}

// Pool manages pre-warmed headless Chrome containers. Each container
// serves exactly one page and is removed afterwards, so no cookies or cache
// leak between scrapes.
type Pool struct {
	cli        *client.Client
	config     Config
	logger     *slog.Logger
	containers chan instance
	done       chan struct{}
	wg         sync.WaitGroup
	startDone  sync.Once
	stopDone   sync.Once
	httpClient *http.Client
}

// NewPool initializes a new container pool wrapper.
func NewPool(cli *client.Client, cfg Config, logger *slog.Logger) *Pool {
	return &Pool{
		cli:        cli,
		config:     cfg,
		logger:     logger,
		containers: make(chan instance, cfg.PoolSize),
		done:       make(chan struct{}),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
}

// Start begins filling the pool with fresh containers in the background.
func (p *Pool) Start() {
	p.startDone.Do(func() {
		p.logger.Info("starting browser container pool", slog.Int("poolSize", p.config.PoolSize))
		p.wg.Add(1)
		go p.manager()
	})
}

// Stop shuts down the manager and cleans up all pre-warmed containers.
func (p *Pool) Stop() {
	p.stopDone.Do(func() {
		p.logger.Info("shutting down browser container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case inst := <-p.containers:
				p.removeContainer(inst.id)
			default:
				return
			}
		}
	})
}

// Acquire takes a ready container out of the pool and returns its DevTools
// websocket URL. It blocks until one is available or ctx is done. The
// release func removes the container.
func (p *Pool) Acquire(ctx context.Context) (string, func(), error) {
	select {
	case inst := <-p.containers:
		url := "ws://" + inst.host
		release := func() { p.removeContainer(inst.id) }
		return url, release, nil
	case <-p.done:
		return "", nil, errors.New("browser pool stopped")
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

// manager continuously ensures the pool is at capacity.
func (p *Pool) manager() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		default:
			if len(p.containers) < cap(p.containers) {
				inst, err := p.createContainer()
				if err != nil {
					p.logger.Error("failed to create pre-warmed browser", slog.String("error", err.Error()))
					// back off, but wake up promptly on shutdown
					select {
					case <-time.After(time.Second):
					case <-p.done:
						return
					}
					continue
				}

				select {
				case p.containers <- inst:
					p.logger.Debug("browser container ready", slog.String("id", shortID(inst.id)), slog.String("host", inst.host))
				case <-p.done:
					p.removeContainer(inst.id)
					return
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

// createContainer starts a browser container and waits until its DevTools
// endpoint answers.
func (p *Pool) createContainer() (instance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second+p.config.ReadyTimeout)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode(p.config.Network),
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		ShmSize:    p.config.ShmSize,
		AutoRemove: false,
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image: p.config.Image,
		Cmd: []string{
			"--remote-debugging-address=0.0.0.0",
			"--remote-debugging-port=" + strconv.Itoa(p.config.Port),
			"--no-first-run",
		},
		Tty: false,
	}, hostConfig, nil, nil, "")
	if err != nil {
		return instance{}, fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.removeContainer(resp.ID)
		return instance{}, fmt.Errorf("ContainerStart failed: %w", err)
	}

	ip, err := p.containerIP(ctx, resp.ID)
	if err != nil {
		p.removeContainer(resp.ID)
		return instance{}, err
	}
	host := ip + ":" + strconv.Itoa(p.config.Port)

	if err := p.waitReady(ctx, host); err != nil {
		p.removeContainer(resp.ID)
		return instance{}, err
	}
	return instance{id: resp.ID, host: host}, nil
}

func (p *Pool) containerIP(ctx context.Context, id string) (string, error) {
	info, err := p.cli.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("ContainerInspect failed: %w", err)
	}
	if info.NetworkSettings != nil {
		if ep, ok := info.NetworkSettings.Networks[p.config.Network]; ok && ep != nil && ep.IPAddress != "" {
			return ep.IPAddress, nil
		}
		for _, ep := range info.NetworkSettings.Networks {
			if ep != nil && ep.IPAddress != "" {
				return ep.IPAddress, nil
			}
		}
	}
	return "", fmt.Errorf("container %s has no IP address", shortID(id))
}

// waitReady polls /json/version until Chrome answers or ReadyTimeout passes.
func (p *Pool) waitReady(ctx context.Context, host string) error {
	deadline := time.Now().Add(p.config.ReadyTimeout)
	url := "http://" + host + "/json/version"

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := p.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("browser at %s not ready after %s", host, p.config.ReadyTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// removeContainer force removes a container by ID.
func (p *Pool) removeContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Warn("failed to remove browser container", slog.String("id", shortID(id)), slog.String("error", err.Error()))
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
