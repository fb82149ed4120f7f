package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// histogramCount returns the observation count for one label set, or 0.
func histogramCount(t *testing.T, m *Metrics, method, route, status string) uint64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != RequestDurationName {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsEqual(metric.GetLabel(), method, route, status) {
				return metric.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func labelsEqual(pairs []*dto.LabelPair, method, route, status string) bool {
	want := map[string]string{
		LabelMethod:     method,
		LabelRoute:      route,
		LabelStatusCode: status,
	}
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}

func scrape(t *testing.T, m *Metrics) (string, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body), rec.Header().Get("Content-Type")
}

func TestObserveRequest_CountsByLabels(t *testing.T) {
	m := New()

	m.ObserveRequest("GET", "/", 200, 0.01)
	m.ObserveRequest("GET", "/", 200, 0.02)
	m.ObserveRequest("GET", "/error", 500, 0.03)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/error", "500")))

	assert.Equal(t, uint64(2), histogramCount(t, m, "GET", "/", "200"))
	assert.Equal(t, uint64(1), histogramCount(t, m, "GET", "/error", "500"))
}

func TestNew_FreshRegistryPerInstance(t *testing.T) {
	a := New()
	b := New()

	a.ObserveRequest("GET", "/", 200, 0.01)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.requestsTotal.WithLabelValues("GET", "/", "200")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.requestsTotal))
}

func TestHandler_ExposesRequestMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/", 200, 0.01)

	body, contentType := scrape(t, m)

	require.True(t, strings.HasPrefix(contentType, "text/plain"), "unexpected content type %q", contentType)
	require.Contains(t, body, RequestsTotalName)
	require.Contains(t, body, RequestDurationName)
	require.Contains(t, body, `http_request_total{method="GET",route="/",status_code="200"} 1`)
	require.Contains(t, body, RequestSeriesName+" 1")
	require.Contains(t, body, "go_goroutines")
}

func TestHandler_ScrapeIsReadOnly(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/", 200, 0.01)

	for i := 0; i < 3; i++ {
		scrape(t, m)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestsTotal))
	assert.Equal(t, uint64(1), histogramCount(t, m, "GET", "/", "200"))
}

func TestObserveRequest_Concurrent(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ObserveRequest("GET", "/hello", 200, 0.001)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/hello", "200")))
	assert.Equal(t, uint64(100), histogramCount(t, m, "GET", "/hello", "200"))
	assert.Equal(t, 1, m.SeriesStats().TotalSeries)
}
