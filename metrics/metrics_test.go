package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery("getAllContractors", "ok", time.Millisecond)
		m.ObserveWrite("SubmitProject", "submitted")
		m.ObserveTransaction("SubmitProject", "confirmed", time.Second)
		m.ObserveUpload("pinata", "ok", 10)
		m.ObserveWorkflow("submission", "done")
		m.ObserveStaleResult()
		m.ObserveRoleChange("agency")
	})
}

func TestCountersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveUpload("pinata", "ok", 512)
	m.ObserveUpload("pinata", "too_large", 2<<20)
	m.ObserveWorkflow("submission", "done")
	m.ObserveStaleResult()
	m.ObserveStaleResult()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("pinata", "ok")))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.uploadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflows.WithLabelValues("submission", "done")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.staleResults))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
