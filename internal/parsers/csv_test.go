package parsers

import (
	"testing"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/fleet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVParser(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		count   int
		prev    []fleet.Sample
		want    []fleet.Sample
		wantErr bool
	}{
		{
			name:   "three GPUs",
			output: "1234, 8192, 45\n5000, 11178, 97\n0, 11178, 0\n",
			count:  3,
			want: []fleet.Sample{
				{MemUsedMiB: 1234, MemTotalMiB: 8192, UtilPercent: 45},
				{MemUsedMiB: 5000, MemTotalMiB: 11178, UtilPercent: 97},
				{MemUsedMiB: 0, MemTotalMiB: 11178, UtilPercent: 0},
			},
		},
		{
			name:   "CRLF and blank lines",
			output: "\r\n10, 20, 30\r\n\r\n",
			count:  1,
			want:   []fleet.Sample{{MemUsedMiB: 10, MemTotalMiB: 20, UtilPercent: 30}},
		},
		{
			name:    "fewer GPUs than slots",
			output:  "10, 20, 30\n",
			count:   3,
			want:    []fleet.Sample{{MemUsedMiB: 10, MemTotalMiB: 20, UtilPercent: 30}, {}, {}},
			wantErr: true,
		},
		{
			name:    "not supported field keeps previous",
			output:  "10, 20, 30\n[N/A], 20, [N/A]\n",
			count:   2,
			prev:    []fleet.Sample{{}, {MemUsedMiB: 1, MemTotalMiB: 2, UtilPercent: 3}},
			want:    []fleet.Sample{{MemUsedMiB: 10, MemTotalMiB: 20, UtilPercent: 30}, {MemUsedMiB: 1, MemTotalMiB: 2, UtilPercent: 3}},
			wantErr: true,
		},
		{
			name:    "wrong field count",
			output:  "GeForce GTX 1080, 10, 20, 30\n",
			count:   1,
			want:    []fleet.Sample{{}},
			wantErr: true,
		},
		{
			name:   "padded fields",
			output: "   10,    20,   30\n",
			count:  1,
			want:   []fleet.Sample{{MemUsedMiB: 10, MemTotalMiB: 20, UtilPercent: 30}},
		},
		{
			name:    "unterminated quote",
			output:  "\"10, 20, 30\n",
			count:   1,
			want:    []fleet.Sample{{}},
			wantErr: true,
		},
		{
			name:   "zero count",
			output: "1, 2, 3\n",
			count:  0,
			want:   []fleet.Sample{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CSVParser{}.Parse(tt.output, tt.count, tt.prev)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrParse))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	poll := config.DefaultConfig().Poll

	p, err := New(poll)
	require.NoError(t, err)
	assert.IsType(t, TableParser{}, p)

	poll.Format = config.FormatCSV
	p, err = New(poll)
	require.NoError(t, err)
	assert.IsType(t, CSVParser{}, p)

	poll.Format = "xml"
	_, err = New(poll)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestCommand(t *testing.T) {
	poll := config.DefaultConfig().Poll
	assert.Equal(t, "nvidia-smi", Command(poll))

	poll.Format = config.FormatCSV
	assert.Equal(t, CSVQueryCommand, Command(poll))

	poll.Command = "nvidia-smi --query-gpu=memory.used,memory.total,utilization.gpu --format=csv,noheader,nounits -i 0"
	assert.Equal(t, poll.Command, Command(poll))
}
