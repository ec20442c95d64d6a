package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/fleet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	view fleet.View
}

func (s staticSource) Snapshot() fleet.View { return s.view }

func testView() fleet.View {
	return fleet.View{
		Servers: []fleet.Server{
			{Index: 1, Hostname: "gpu1.lab", Accelerators: 2},
			{Index: 2, Hostname: "gpu2.lab", Accelerators: 1},
		},
		Samples: [][]fleet.Sample{
			{{MemUsedMiB: 1234, MemTotalMiB: 8192, UtilPercent: 45}, {MemUsedMiB: 10, MemTotalMiB: 8192, UtilPercent: 0}},
			{{MemUsedMiB: 0, MemTotalMiB: 0, UtilPercent: 0}, {}},
		},
		Status: []fleet.Status{
			{LastSuccess: time.Unix(1700000000, 0), Polls: 3},
			{Failures: 4, LastError: "Can't reach 'gpu2.lab'"},
		},
	}
}

func TestExporter_CountsPollOutcomes(t *testing.T) {
	e := NewExporter()
	server := fleet.Server{Index: 1, Hostname: "gpu1.lab", Accelerators: 4}

	e.PollSucceeded(server, 300*time.Millisecond)
	e.PollSucceeded(server, 200*time.Millisecond)
	e.PollFailed(server, errors.New(errors.ErrConnect, "refused", ""))
	e.PollFailed(server, errors.New(errors.ErrExec, "exit 9", ""))
	e.PollFailed(server, assert.AnError)

	assert.Equal(t, 2.0, testutil.ToFloat64(e.polls.WithLabelValues("gpu1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.polls.WithLabelValues("gpu1", "connect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.polls.WithLabelValues("gpu1", "exec")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.polls.WithLabelValues("gpu1", "other")))
}

func TestExporter_NoSourceOnlyCounters(t *testing.T) {
	e := NewExporter()
	assert.Equal(t, 0, testutil.CollectAndCount(e, "gpumon_gpu_utilization_percent"))
}

func TestExporter_GaugesFromSnapshot(t *testing.T) {
	e := NewExporter()
	e.Attach(staticSource{view: testView()})

	// Three real GPUs, nonexistent slots are skipped.
	assert.Equal(t, 3, testutil.CollectAndCount(e, "gpumon_gpu_utilization_percent"))
	assert.Equal(t, 3, testutil.CollectAndCount(e, "gpumon_gpu_memory_used_mib"))
	assert.Equal(t, 2, testutil.CollectAndCount(e, "gpumon_server_up"))

	expected := `
# HELP gpumon_server_up 1 if the last poll of the server succeeded.
# TYPE gpumon_server_up gauge
gpumon_server_up{index="1",server="gpu1"} 1
gpumon_server_up{index="2",server="gpu2"} 0
`
	require.NoError(t, testutil.CollectAndCompare(e, strings.NewReader(expected), "gpumon_server_up"))

	expected = `
# HELP gpumon_gpu_memory_used_mib GPU memory in use, MiB.
# TYPE gpumon_gpu_memory_used_mib gauge
gpumon_gpu_memory_used_mib{gpu="0",index="1",server="gpu1"} 1234
gpumon_gpu_memory_used_mib{gpu="0",index="2",server="gpu2"} 0
gpumon_gpu_memory_used_mib{gpu="1",index="1",server="gpu1"} 10
`
	require.NoError(t, testutil.CollectAndCompare(e, strings.NewReader(expected), "gpumon_gpu_memory_used_mib"))
}

func TestHandler_ServesRegistry(t *testing.T) {
	e := NewExporter()
	e.Attach(staticSource{view: testView()})
	e.PollSucceeded(fleet.Server{Index: 1, Hostname: "gpu1.lab"}, time.Second)

	reg, err := NewRegistry(e)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `gpumon_gpu_utilization_percent{gpu="0",index="1",server="gpu1"} 45`)
	assert.Contains(t, body, `gpumon_polls_total{result="ok",server="gpu1"} 1`)
	assert.Contains(t, body, `gpumon_server_consecutive_failures{index="2",server="gpu2"} 4`)
	assert.Contains(t, body, "go_goroutines")
}
