package datadog

import (
	"testing"
	"time"

	"movie-pipeline/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls  []call
	closed bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, rate float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, call{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestNewBackendRequiresAddr(t *testing.T) {
	_, err := NewBackend(Config{})
	assert.Error(t, err)
}

func TestBackendForwardsToClient(t *testing.T) {
	fc := &fakeClient{}
	rec := metrics.NewRecorder(NewWithClient(fc))

	rec.Write("directors", "skipped", 2)
	rec.Step("views", nil, 1500*time.Millisecond)
	require.NoError(t, rec.Flush())

	require.Len(t, fc.calls, 3)
	assert.Equal(t, call{"count", metrics.WritesTotal, 2, []string{"collection:directors", "outcome:skipped"}}, fc.calls[0])
	assert.Equal(t, call{"count", metrics.StepTotal, 1, []string{"status:success", "step:views"}}, fc.calls[1])
	assert.Equal(t, "histogram", fc.calls[2].kind)
	assert.Equal(t, 1.5, fc.calls[2].value)
	assert.True(t, fc.closed)
}

func TestLabelsToTags(t *testing.T) {
	assert.Nil(t, labelsToTags(nil))
	assert.Equal(t, []string{"a:1", "b:2"}, labelsToTags(metrics.Labels{"b": "2", "a": "1"}))
}
