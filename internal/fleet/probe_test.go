package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
	sshtest "github.com/rileyhilliard/gpumon/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_Success(t *testing.T) {
	opener := sshtest.NewMockOpener()
	opener.Script("gpu1", sshtest.Output("100 200 30\n300 400 50\n"))

	srv := Server{Index: 1, Hostname: "gpu1", Accelerators: 2}
	res := Probe(context.Background(), opener, lineParser{}, "nvidia-smi", srv, time.Second)

	require.True(t, res.OK())
	assert.NoError(t, res.ParseErr)
	assert.Equal(t, []Sample{{100, 200, 30}, {300, 400, 50}}, res.Samples)
	assert.Equal(t, srv, res.Server)
	assert.Equal(t, []string{"nvidia-smi"}, opener.Commands("gpu1"))
	assert.Zero(t, opener.LiveSessions())
}

func TestProbe_PartialParse(t *testing.T) {
	opener := sshtest.NewMockOpener()
	opener.Script("gpu1", sshtest.Output("100 200 30\n"))

	res := Probe(context.Background(), opener, lineParser{}, "nvidia-smi",
		Server{Index: 1, Hostname: "gpu1", Accelerators: 2}, time.Second)

	assert.True(t, res.OK())
	assert.Error(t, res.ParseErr)
	assert.Equal(t, []Sample{{100, 200, 30}, {}}, res.Samples)
}

func TestProbe_Failures(t *testing.T) {
	tests := []struct {
		name     string
		response sshtest.Response
		code     string
	}{
		{
			name:     "connect",
			response: sshtest.Response{OpenErr: errors.New(errors.ErrConnect, "Can't reach gpu1", "")},
			code:     errors.ErrConnect,
		},
		{
			name:     "non-zero exit",
			response: sshtest.Response{Result: sshutil.Result{Stderr: []byte("NVIDIA-SMI has failed\n"), ExitStatus: 9}},
			code:     errors.ErrExec,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := sshtest.NewMockOpener()
			opener.Script("gpu1", tt.response)

			res := Probe(context.Background(), opener, lineParser{}, "nvidia-smi",
				Server{Index: 1, Hostname: "gpu1", Accelerators: 1}, time.Second)

			assert.False(t, res.OK())
			assert.True(t, errors.IsCode(res.Err, tt.code), "got %v", res.Err)
			assert.Nil(t, res.Samples)
			assert.Zero(t, opener.LiveSessions())
		})
	}
}

func TestProbe_Timeout(t *testing.T) {
	opener := sshtest.NewMockOpener()
	opener.Script("gpu1", sshtest.Response{Block: true})

	start := time.Now()
	res := Probe(context.Background(), opener, lineParser{}, "nvidia-smi",
		Server{Index: 1, Hostname: "gpu1", Accelerators: 1}, 50*time.Millisecond)

	assert.False(t, res.OK())
	assert.Less(t, time.Since(start), 2*time.Second)
}
