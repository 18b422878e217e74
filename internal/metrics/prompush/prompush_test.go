package prompush

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"movie-pipeline/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	_, err := NewBackend("job", "")
	assert.Error(t, err)

	b, err := NewBackend("", "http://pushgateway:9091")
	require.NoError(t, err)
	assert.Equal(t, "movie_pipeline", b.jobName)
}

func TestCountersThroughRecorder(t *testing.T) {
	b, err := NewBackend("movies", "http://pushgateway:9091")
	require.NoError(t, err)
	rec := metrics.NewRecorder(b)

	rec.Rejected("year", 3)
	rec.Rejected("year", 2)
	rec.Write("movies", "inserted", 4)
	rec.Records("ingested", 10)
	rec.ViewError("top_5_directors_rated", "drop")
	rec.Step("clean", errors.New("boom"), 2*time.Second)
	b.IncCounter("unknown_metric", 1, nil)

	assert.Equal(t, 5.0, testutil.ToFloat64(b.rejected.WithLabelValues("year")))
	assert.Equal(t, 4.0, testutil.ToFloat64(b.writes.WithLabelValues("movies", "inserted")))
	assert.Equal(t, 10.0, testutil.ToFloat64(b.records.WithLabelValues("ingested")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.viewErrors.WithLabelValues("top_5_directors_rated", "drop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.stepCounter.WithLabelValues("clean", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(b.stepDuration))
}

func TestFlushPushesToGateway(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var bodies []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("movies", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.RecordsTotal, 7, metrics.Labels{"kind": "cleaned"})

	require.NoError(t, b.Flush())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	assert.Equal(t, "/metrics/job/movies", paths[0])
	assert.NotEmpty(t, bodies[0])
}
