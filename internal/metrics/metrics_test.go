package metrics

import (
    "testing"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/testutil"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestNewRegistersOnce(t *testing.T) {
    reg := prometheus.NewRegistry()
    m, err := New(reg)
    require.NoError(t, err)
    require.NotNil(t, m)

    _, err = New(reg)
    assert.Error(t, err, "second registration must collide")
}

func TestRecorders(t *testing.T) {
    m, err := New(prometheus.NewRegistry())
    require.NoError(t, err)

    m.RecordImport(ResultSuccess, 10*time.Millisecond)
    m.RecordImport(ResultInvalid, 0)
    m.RecordFanout(ResultSuccess, 3)
    m.LiveConnected(2)
    m.LiveConnected(-1)
    m.RecordDropped("buffer_full")

    assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportsTotal.WithLabelValues(ResultSuccess)))
    assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportsTotal.WithLabelValues(ResultInvalid)))
    assert.Equal(t, 1.0, testutil.ToFloat64(m.FanoutPublishes.WithLabelValues(ResultSuccess)))
    assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveConnections))
    assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveDropped.WithLabelValues("buffer_full")))
}

func TestNilMetricsIsNoop(t *testing.T) {
    var m *Metrics
    assert.NotPanics(t, func() {
        m.RecordImport(ResultError, time.Second)
        m.RecordEntityCreated("unit")
        m.RecordHook("fanout", ResultSuccess, time.Millisecond)
        m.RecordFanout(ResultTimeout, 2)
        m.LiveConnected(1)
        m.RecordDelivered()
        m.RecordDropped("closed")
    })
}
