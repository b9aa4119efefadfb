package docker

import (
	"time"
)

// Config holds the configuration for pooled browser containers.
type Config struct {
	// Image is a Chrome image exposing DevTools on Port.
	Image string
	// Port is the DevTools port inside the container.
	Port int
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// ShmSize sizes /dev/shm; Chrome crashes on tabs with the 64 MB default.
	ShmSize int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// Network is the docker network containers join. It must let them reach
	// the public internet and be reachable from this process.
	Network string
	// ReadyTimeout bounds how long a fresh container may take to answer on
	// its DevTools endpoint.
	ReadyTimeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig provides defaults for chromedp's headless-shell image.
func DefaultConfig() Config {
	return Config{
		Image:        "chromedp/headless-shell:latest",
		Port:         9222,
		MemoryLimit:  768 * 1024 * 1024,
		ShmSize:      256 * 1024 * 1024,
		CPULimit:     1,
		Network:      "bridge",
		ReadyTimeout: 20 * time.Second,
		PoolSize:     2,
	}
}
