package exporter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopms/pkg/aqi"
	"github.com/itohio/gopms/pkg/pms"
	"github.com/itohio/gopms/pkg/sample"
)

func testSample(ts time.Time) sample.Sample {
	return sample.FromReading(pms.Reading{
		Timestamp: ts,
		Measurement: pms.Measurement{
			PM1Std: 5, PM25Std: 36, PM10Std: 40,
			PM1Env: 4, PM25Env: 30, PM10Env: 38,
			Particles03: 1200, Particles05: 400, Particles10: 90,
			Particles25: 12, Particles50: 3, Particles100: 1,
		},
	})
}

func TestObserve(t *testing.T) {
	e := New()
	ts := time.Unix(1700000000, 500000000)
	e.Observe(testSample(ts))

	tests := []struct {
		size, calibration string
		want              float64
	}{
		{"pm1.0", "standard", 5},
		{"pm2.5", "standard", 36},
		{"pm10", "standard", 40},
		{"pm1.0", "environment", 4},
		{"pm2.5", "environment", 30},
		{"pm10", "environment", 38},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(e.mass.WithLabelValues(tt.size, tt.calibration))
		assert.Equal(t, tt.want, got, "%s %s", tt.size, tt.calibration)
	}

	counts := map[string]float64{
		"0.3": 1200, "0.5": 400, "1.0": 90, "2.5": 12, "5.0": 3, "10": 1,
	}
	for size, want := range counts {
		assert.Equal(t, want, testutil.ToFloat64(e.particles.WithLabelValues(size)), size)
	}

	assert.Equal(t, float64(102), testutil.ToFloat64(e.aqi))
	assert.Equal(t, float64(aqi.UnhealthySensitive), testutil.ToFloat64(e.category))
	assert.InDelta(t, 1700000000.5, testutil.ToFloat64(e.timestamp), 1e-3)
	assert.Equal(t, float64(1), testutil.ToFloat64(e.readings))
}

func TestObserve_Counts(t *testing.T) {
	e := New()
	for i := 0; i < 5; i++ {
		e.Observe(testSample(time.Now()))
	}
	assert.Equal(t, float64(5), testutil.ToFloat64(e.readings))
}

func TestObserve_ZeroTimestampKeepsLast(t *testing.T) {
	e := New()
	e.Observe(testSample(time.Unix(100, 0)))
	e.Observe(testSample(time.Time{}))
	assert.Equal(t, float64(100), testutil.ToFloat64(e.timestamp))
}

func TestExportersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Observe(testSample(time.Now()))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.readings))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.readings))
}

func TestHandler(t *testing.T) {
	e := New()
	e.Observe(testSample(time.Now()))

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `pms_mass_concentration_ugm3{calibration="standard",size="pm2.5"} 36`)
	assert.Contains(t, text, `pms_particle_count{size="0.3"} 1200`)
	assert.Contains(t, text, "pms_aqi 102")
	assert.Contains(t, text, "pms_readings_total 1")
}
