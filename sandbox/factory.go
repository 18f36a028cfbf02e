package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/allruby/config"
)

// NewRunner creates an appropriate sandbox runner based on the configuration
func NewRunner(logger *zap.Logger, cfg *config.Config) (Runner, error) {
	runnerConfig := Config{
		MemoryMB:       cfg.Sandbox.MemoryMB,
		PidsLimit:      cfg.Sandbox.PidsLimit,
		Locale:         cfg.Sandbox.Locale,
		CleanupTimeout: cfg.GetCleanupTimeout(),
	}

	engine := cfg.Sandbox.Engine
	if engine == "" {
		engine = cfg.Sandbox.Backend
	}

	switch cfg.Sandbox.Backend {
	case "docker", "podman":
		return NewContainerRunner(logger, &runnerConfig, engine), nil
	case "local":
		if !cfg.Sandbox.EnableLocalBackend {
			return nil, fmt.Errorf("local backend is disabled")
		}
		return NewLocalRunner(logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
