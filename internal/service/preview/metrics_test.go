package preview

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	r.ObserveValidation(true)
	r.ObserveValidation(false)
	r.ObserveValidation(false)
	r.ObserveStrategy("placeholder")
	r.ObserveFetch("ok", 120*time.Millisecond)
	r.ObservePreview("degraded", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.validations.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.validations.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.strategies.WithLabelValues("placeholder")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.fetchDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(r.previewDuration))
}

func TestPrometheusRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err)
}
