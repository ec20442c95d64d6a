package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/logger"
)

// DefaultLogFile receives the log while the dashboard owns the terminal.
const DefaultLogFile = "~/.cache/gpumon/gpumon.log"

// setupLogger picks the log destination: log.file when set, stderr in
// headless mode, DefaultLogFile otherwise. The returned func closes the
// file, if any.
func setupLogger(cfg config.LogConfig, headless bool, stderr io.Writer) (logger.Logger, func(), error) {
	path := cfg.File
	if path == "" && !headless {
		path = config.ExpandHome(DefaultLogFile)
	}

	out := stderr
	closeFn := func() {}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Can't create the log directory for "+path,
				"Set log.file to a writable location.")
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Can't open log file "+path,
				"Set log.file to a writable location.")
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	log, err := logger.New(logger.Options{Level: cfg.Level, Output: out, JSON: cfg.JSON})
	if err != nil {
		closeFn()
		return nil, nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid log settings", "Use one of: debug, info, warn, error.")
	}
	logger.SetDefault(log)
	return log, closeFn, nil
}
