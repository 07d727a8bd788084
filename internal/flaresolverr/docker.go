package flaresolverr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/appearances-scraper/internal/pacing"
)

// CommandRunner executes an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // operator-configured binary
}

// DockerConfig describes the proxy container.
type DockerConfig struct {
	Binary        string
	ContainerName string
	Image         string
	Port          int
	// Settle is the pause between removing the old container and starting the new one.
	Settle time.Duration
}

// DockerRestarter recreates the proxy container with the docker CLI.
type DockerRestarter struct {
	cfg    DockerConfig
	run    CommandRunner
	pauser pacing.Pauser
	logger *zap.Logger
}

// NewDockerRestarter builds a restarter. A nil runner uses os/exec and a nil pauser the real clock.
func NewDockerRestarter(cfg DockerConfig, run CommandRunner, pauser pacing.Pauser, logger *zap.Logger) *DockerRestarter {
	if cfg.Binary == "" {
		cfg.Binary = "docker"
	}
	if cfg.ContainerName == "" {
		cfg.ContainerName = "flaresolverr"
	}
	if cfg.Image == "" {
		cfg.Image = "ghcr.io/flaresolverr/flaresolverr:latest"
	}
	if cfg.Port == 0 {
		cfg.Port = 8191
	}
	if run == nil {
		run = execRunner
	}
	if pauser == nil {
		pauser = pacing.Timer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DockerRestarter{cfg: cfg, run: run, pauser: pauser, logger: logger.Named("docker")}
}

// Restart force-removes the container and starts a fresh one.
func (d *DockerRestarter) Restart(ctx context.Context) error {
	if out, err := d.run(ctx, d.cfg.Binary, "rm", "-f", d.cfg.ContainerName); err != nil {
		// A missing container is fine; the run below is what matters.
		d.logger.Debug("remove container failed",
			zap.String("container", d.cfg.ContainerName),
			zap.String("output", truncate(strings.TrimSpace(string(out)), 200)),
			zap.Error(err))
	}
	if err := d.pauser.Pause(ctx, d.cfg.Settle); err != nil {
		return fmt.Errorf("settle after remove: %w", err)
	}
	port := strconv.Itoa(d.cfg.Port)
	out, err := d.run(ctx, d.cfg.Binary,
		"run", "-d",
		"--name", d.cfg.ContainerName,
		"-p", port+":8191",
		"--restart", "unless-stopped",
		d.cfg.Image,
	)
	if err != nil {
		return fmt.Errorf("docker run %s: %w: %s", d.cfg.ContainerName, err, truncate(strings.TrimSpace(string(out)), 200))
	}
	d.logger.Info("proxy container started", zap.String("container", d.cfg.ContainerName))
	return nil
}
