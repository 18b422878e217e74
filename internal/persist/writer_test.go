package persist

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"movie-pipeline/internal/logger"
	"movie-pipeline/internal/metrics"
	"movie-pipeline/internal/model"
	"movie-pipeline/internal/store"
	"movie-pipeline/internal/views"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func movie(id, title string, directors ...string) model.Movie {
	return model.Movie{
		Title: title, Year: 2000, ExternalID: id, Runtime: 100, Rating: 7,
		Directors: directors,
	}
}

func newWriter(t *testing.T) (*Writer, *store.MemoryStore, *metrics.Memory) {
	t.Helper()
	s := store.NewMemoryStore(views.Defaults(views.DefaultCastDelimiter))
	m := metrics.NewMemory()
	w := NewWriter(s, logger.Discard(), metrics.NewRecorder(m))
	require.NoError(t, w.EnsureCollections(context.Background()))
	return w, s, m
}

func TestEnsureCollections(t *testing.T) {
	w, s, _ := newWriter(t)
	names, err := s.ListCollectionNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"directors", "movies"}, names)

	// a second bootstrap is a no-op
	require.NoError(t, w.EnsureCollections(context.Background()))
}

func TestWriteMoviesDerivesDirectors(t *testing.T) {
	w, s, m := newWriter(t)
	movies := []model.Movie{
		movie("tt1234567", "A", "X", "Y"),
		movie("tt7654321", "B", "Y", "Z"),
	}

	ms, ds, err := w.WriteMovies(context.Background(), movies)
	require.NoError(t, err)
	assert.Equal(t, model.WriteStats{Collection: "movies", Inserted: 2}, ms)
	assert.Equal(t, model.WriteStats{Collection: "directors", Inserted: 3}, ds)

	docs, err := s.Find(context.Background(), model.CollectionDirectors, nil)
	require.NoError(t, err)
	var names []string
	for _, d := range docs {
		names = append(names, d["name"].(string))
	}
	assert.Equal(t, []string{"X", "Y", "Z"}, names)
	assert.Equal(t, 3.0, m.Counter(metrics.WritesTotal, metrics.Labels{"collection": "directors", "outcome": "inserted"}))
}

func TestWriteIsIdempotent(t *testing.T) {
	w, s, _ := newWriter(t)
	movies := []model.Movie{movie("tt1234567", "A", "X", "Y")}

	_, _, err := w.WriteMovies(context.Background(), movies)
	require.NoError(t, err)
	ms, ds, err := w.WriteMovies(context.Background(), movies)
	require.NoError(t, err)

	assert.Equal(t, 0, ms.Inserted)
	assert.Equal(t, 1, ms.Skipped)
	assert.Equal(t, 2, ds.Skipped)
	assert.Equal(t, 1, s.Count(model.CollectionMovies))
	assert.Equal(t, 2, s.Count(model.CollectionDirectors))
}

func TestWriteDuplicateKeysInOneBatch(t *testing.T) {
	w, s, _ := newWriter(t)
	docs := []model.GenericRecord{{"name": "X"}, {"name": "X"}}

	stats, err := w.Write(context.Background(), model.CollectionDirectors, docs)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, model.WriteStats{Collection: "directors", Inserted: 1, Skipped: 1}, stats[0])
	assert.Equal(t, 1, s.Count(model.CollectionDirectors))
}

func TestWriteRejectsUnknownCollection(t *testing.T) {
	w, s, _ := newWriter(t)
	_, err := w.Write(context.Background(), "actors", []model.GenericRecord{{"name": "A"}})
	assert.True(t, errors.Is(err, ErrInvalidTargetCollection))
	assert.Equal(t, 0, s.Count("actors"))

	key, ok := w.Key(model.CollectionMovies)
	assert.True(t, ok)
	assert.Equal(t, "external_id", key)
	_, ok = w.Key("actors")
	assert.False(t, ok)
}

func TestWriteRejectsMissingKeyBeforeWriting(t *testing.T) {
	w, s, _ := newWriter(t)
	_, err := w.Write(context.Background(), model.CollectionDirectors, []model.GenericRecord{{"name": "A"}, {"name": ""}})
	assert.True(t, errors.Is(err, ErrMissingKey))
	assert.Equal(t, 0, s.Count(model.CollectionDirectors))
}

// racingStore never finds anything, as if another writer inserted between
// lookup and insert.
type racingStore struct {
	*store.MemoryStore
}

func (racingStore) FindOne(context.Context, string, bson.M) (bson.M, error) {
	return nil, store.ErrNotFound
}

func TestWriteUniqueIndexIsBackstop(t *testing.T) {
	mem := store.NewMemoryStore(nil)
	w := NewWriter(racingStore{mem}, logger.Discard(), nil)
	require.NoError(t, w.EnsureCollections(context.Background()))

	stats, err := w.Write(context.Background(), model.CollectionDirectors, []model.GenericRecord{{"name": "X"}, {"name": "X"}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats[0].Inserted)
	assert.Equal(t, 1, stats[0].Skipped)
	assert.Equal(t, 1, mem.Count(model.CollectionDirectors))
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) InsertOne(context.Context, string, interface{}) error {
	return fmt.Errorf("connection reset")
}

func TestWritePropagatesStoreErrors(t *testing.T) {
	w := NewWriter(failingStore{store.NewMemoryStore(nil)}, logger.Discard(), nil)
	_, err := w.Write(context.Background(), model.CollectionDirectors, []model.GenericRecord{{"name": "X"}})
	assert.EqualError(t, err, "connection reset")
}

func TestDeriveDirectors(t *testing.T) {
	docs := []model.GenericRecord{
		{"directors": []string{"X", " Y "}},
		{"directors": []interface{}{"Y", nil, ""}},
		{"title": "no directors"},
	}
	got := DeriveDirectors(docs)
	assert.Equal(t, []model.GenericRecord{{"name": "X"}, {"name": "Y"}}, got)
}
