package cli

import (
	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/fleet"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/internal/parsers"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
)

// loadConfig finds, loads and validates the config.
func loadConfig(path string) (*config.Config, error) {
	cfg, _, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDialer builds the SSH dialer every poller shares.
func newDialer(cfg *config.Config, password string, log logger.Logger) *sshutil.Dialer {
	return &sshutil.Dialer{
		User:                  cfg.User,
		Password:              password,
		Port:                  cfg.SSH.Port,
		Timeout:               cfg.SSH.ConnectTimeout,
		StrictHostKeyChecking: cfg.SSH.StrictHostKeyChecking,
		KnownHostsPath:        cfg.SSH.KnownHosts,
		Logger:                log,
	}
}

// collectorOptions maps the config onto fleet.Options.
func collectorOptions(cfg *config.Config, opener sshutil.Opener, observer fleet.Observer, log logger.Logger) (fleet.Options, error) {
	parser, err := parsers.New(cfg.Poll)
	if err != nil {
		return fleet.Options{}, err
	}

	return fleet.Options{
		Servers:  fleet.NewServers(cfg.Fleet),
		Slots:    cfg.Fleet.Slots,
		Command:  parsers.Command(cfg.Poll),
		Interval: cfg.Poll.Interval,
		Timeout:  cfg.Poll.Timeout,
		Opener:   opener,
		Parser:   parser,
		DialRate: cfg.SSH.DialRate,
		Observer: observer,
		Logger:   log,
	}, nil
}

// loginName is the user shown in prompts.
func loginName(cfg *config.Config) string {
	if cfg.User != "" {
		return cfg.User
	}
	return sshutil.CurrentUser()
}
