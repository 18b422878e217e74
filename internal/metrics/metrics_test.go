package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderNilBackendIsNop(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Rejected("year", 3)
	rec.Step("clean", nil, time.Second)
	assert.NoError(t, rec.Flush())
}

func TestRecorderCounts(t *testing.T) {
	m := NewMemory()
	rec := NewRecorder(m)

	rec.Rejected("rating", 2)
	rec.Rejected("rating", 1)
	rec.Rejected("year", 0)
	rec.Records("ingested", 5)
	rec.Write("movies", "inserted", 4)
	rec.Write("movies", "skipped", -1)
	rec.ViewError("v", "drop")
	rec.Step("write", errors.New("x"), time.Millisecond)
	require.NoError(t, rec.Flush())

	assert.Equal(t, 3.0, m.Counter(RejectedTotal, Labels{"stage": "rating"}))
	assert.Equal(t, 0.0, m.Counter(RejectedTotal, Labels{"stage": "year"}))
	assert.Equal(t, 5.0, m.Counter(RecordsTotal, Labels{"kind": "ingested"}))
	assert.Equal(t, 4.0, m.Counter(WritesTotal, Labels{"collection": "movies", "outcome": "inserted"}))
	assert.Equal(t, 0.0, m.Counter(WritesTotal, Labels{"collection": "movies", "outcome": "skipped"}))
	assert.Equal(t, 1.0, m.Counter(ViewErrorsTotal, Labels{"view": "v", "op": "drop"}))
	assert.Equal(t, 1.0, m.Counter(StepTotal, Labels{"step": "write", "status": "failure"}))
	assert.Equal(t, 1.0, m.Counter(StepDuration+"_count", Labels{"step": "write", "status": "failure"}))
	assert.Equal(t, 1, m.Flushes())
}
