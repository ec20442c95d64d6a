package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeConfig writes a .gpumon.yaml into a temp dir and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".gpumon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const smallFleet = `
version: 1
fleet:
  size: 3
  hostname: "gpu{index}.lab"
  slots: 4
  default_accelerators: 3
  accelerators: [4, 2]
poll:
  format: csv
`
