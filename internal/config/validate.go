package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/logger"
)

// MinPollInterval keeps a misconfigured fleet from hammering its hosts.
const MinPollInterval = 500 * time.Millisecond

// Validate checks the config for errors and returns structured error messages.
// Every failure carries the ErrConfig code and is meant to stop startup
// before any poller is spawned.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but gpumon only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade gpumon or lower the version field.")
	}

	if err := validateFleet(cfg.Fleet); err != nil {
		return errors.New(errors.ErrConfig, err.Error(), "Check the 'fleet' section in your .gpumon.yaml.")
	}

	if err := validatePoll(cfg.Poll); err != nil {
		return errors.New(errors.ErrConfig, err.Error(), "Check the 'poll' section in your .gpumon.yaml.")
	}

	if err := validateSSH(cfg.SSH); err != nil {
		return errors.New(errors.ErrConfig, err.Error(), "Check the 'ssh' section in your .gpumon.yaml.")
	}

	if cfg.Dashboard.Refresh < 0 {
		return errors.New(errors.ErrConfig,
			"dashboard.refresh can't be negative",
			"Use a duration like 2s.")
	}

	if !logger.ValidLevel(cfg.Log.Level) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown log level '%s'", cfg.Log.Level),
			"Use one of: debug, info, warn, error.")
	}

	return nil
}

func validateFleet(f FleetConfig) error {
	if f.Size < 1 {
		return fmt.Errorf("fleet.size must be at least 1, got %d", f.Size)
	}

	if strings.TrimSpace(f.Hostname) == "" {
		return fmt.Errorf("fleet.hostname is empty")
	}
	if !strings.Contains(f.Hostname, IndexPlaceholder) && f.Size > 1 {
		return fmt.Errorf("fleet.hostname '%s' has no %s placeholder, so every server would get the same name", f.Hostname, IndexPlaceholder)
	}

	if f.DefaultAccelerators < 0 {
		return fmt.Errorf("fleet.default_accelerators can't be negative, got %d", f.DefaultAccelerators)
	}
	for i, n := range f.Accelerators {
		if n < 0 {
			return fmt.Errorf("fleet.accelerators[%d] (server %d) can't be negative, got %d", i, i+1, n)
		}
	}
	if len(f.Accelerators) > f.Size {
		return fmt.Errorf("fleet.accelerators lists %d servers but fleet.size is %d", len(f.Accelerators), f.Size)
	}

	if f.Slots < 0 {
		return fmt.Errorf("fleet.slots can't be negative, got %d", f.Slots)
	}
	if f.Slots > 0 {
		for i := 1; i <= f.Size; i++ {
			if n := f.AcceleratorCount(i); n > f.Slots {
				return fmt.Errorf("server %d has %d accelerators but fleet.slots is %d", i, n, f.Slots)
			}
		}
	}

	return nil
}

func validatePoll(p PollConfig) error {
	if p.Interval < MinPollInterval {
		return fmt.Errorf("poll.interval %s is too short (minimum %s)", p.Interval, MinPollInterval)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("poll.timeout must be positive, got %s", p.Timeout)
	}
	if strings.TrimSpace(p.Command) == "" {
		return fmt.Errorf("poll.command is empty")
	}

	switch p.Format {
	case FormatTable:
		return validateLayout(p.Layout)
	case FormatCSV:
		return nil
	default:
		return fmt.Errorf("poll.format '%s' isn't supported (use '%s' or '%s')", p.Format, FormatTable, FormatCSV)
	}
}

func validateLayout(l LayoutConfig) error {
	if l.FirstRow < 0 {
		return fmt.Errorf("poll.layout.first_row can't be negative, got %d", l.FirstRow)
	}
	if l.Stride < 1 {
		return fmt.Errorf("poll.layout.stride must be at least 1, got %d", l.Stride)
	}
	if l.MemoryColumn < 0 || l.UtilColumn < 0 {
		return fmt.Errorf("poll.layout columns can't be negative")
	}
	return nil
}

func validateSSH(s SSHConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("ssh.port %d is out of range", s.Port)
	}
	if s.ConnectTimeout < 0 {
		return fmt.Errorf("ssh.connect_timeout can't be negative")
	}
	if s.DialRate < 0 {
		return fmt.Errorf("ssh.dial_rate can't be negative")
	}
	if s.StrictHostKeyChecking && s.KnownHosts == "" {
		return fmt.Errorf("ssh.known_hosts is required when strict_host_key_checking is on")
	}
	return nil
}
