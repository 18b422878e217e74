// Package persist writes cleaned batches into the document store, skipping
// records whose unique key is already present.
package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"movie-pipeline/internal/metrics"
	"movie-pipeline/internal/model"
	"movie-pipeline/internal/store"
	"movie-pipeline/pkg/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrInvalidTargetCollection is returned for collections without a registered key.
	ErrInvalidTargetCollection = errors.New("invalid target collection")
	// ErrMissingKey is returned when a document lacks its collection's unique key.
	ErrMissingKey = errors.New("document has no unique key")
)

// DefaultKeys maps each known collection to its unique key.
var DefaultKeys = map[string]string{
	model.CollectionMovies:    "external_id",
	model.CollectionDirectors: "name",
}

// Writer inserts documents that are not already stored. The lookup before
// each insert is not atomic; the store's unique index rejects whatever slips
// through and those rejections are counted as skipped.
type Writer struct {
	store   store.Store
	keys    map[string]string
	log     logrus.FieldLogger
	metrics *metrics.Recorder
}

// NewWriter builds a writer over the default collection registry.
func NewWriter(s store.Store, log logrus.FieldLogger, rec *metrics.Recorder) *Writer {
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}
	keys := make(map[string]string, len(DefaultKeys))
	for c, k := range DefaultKeys {
		keys[c] = k
	}
	return &Writer{store: s, keys: keys, log: log, metrics: rec}
}

// Key returns the unique key of a collection.
func (w *Writer) Key(collection string) (string, bool) {
	k, ok := w.keys[collection]
	return k, ok
}

// EnsureCollections creates missing collections and their unique indexes.
func (w *Writer) EnsureCollections(ctx context.Context) error {
	names, err := w.store.ListCollectionNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	existing := make(map[string]bool, len(names))
	for _, n := range names {
		existing[n] = true
	}

	for _, collection := range []string{model.CollectionMovies, model.CollectionDirectors} {
		if !existing[collection] {
			if err := w.store.CreateCollection(ctx, collection); err != nil && !errors.Is(err, store.ErrNamespaceExists) {
				return fmt.Errorf("failed to create collection %s: %w", collection, err)
			}
			w.log.WithField("collection", collection).Info("Collection created")
		}
		key := w.keys[collection]
		if err := w.store.CreateUniqueIndex(ctx, collection, key); err != nil {
			return fmt.Errorf("failed to create index %s on %s: %w", store.UniqueIndexName(key), collection, err)
		}
	}
	return nil
}

// Write inserts every document whose key is not yet in the collection.
// Writing movies also writes the distinct directors they reference.
// It returns the stats of the target collection and, for movies, of directors.
func (w *Writer) Write(ctx context.Context, collection string, docs []model.GenericRecord) ([]model.WriteStats, error) {
	key, ok := w.Key(collection)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTargetCollection, collection)
	}
	for i, doc := range docs {
		if utils.IsMissing(doc[key]) {
			return nil, fmt.Errorf("%w: %s document %d has no %s", ErrMissingKey, collection, i, key)
		}
	}

	start := time.Now()
	stats := model.WriteStats{Collection: collection}
	for _, doc := range docs {
		inserted, err := w.insertIfAbsent(ctx, collection, key, doc)
		if err != nil {
			w.metrics.Step("write_"+collection, err, time.Since(start))
			return nil, err
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Skipped++
		}
	}

	w.metrics.Write(collection, "inserted", stats.Inserted)
	w.metrics.Write(collection, "skipped", stats.Skipped)
	w.metrics.Step("write_"+collection, nil, time.Since(start))
	w.log.WithFields(logrus.Fields{
		"collection": collection,
		"inserted":   stats.Inserted,
		"skipped":    stats.Skipped,
	}).Info("Write summary")

	all := []model.WriteStats{stats}
	if collection == model.CollectionMovies {
		directors, err := w.Write(ctx, model.CollectionDirectors, DeriveDirectors(docs))
		if err != nil {
			return all, fmt.Errorf("failed to derive directors: %w", err)
		}
		all = append(all, directors...)
	}
	return all, nil
}

// WriteMovies converts movies to documents and writes them.
func (w *Writer) WriteMovies(ctx context.Context, movies []model.Movie) (movieStats, directorStats model.WriteStats, err error) {
	docs := make([]model.GenericRecord, 0, len(movies))
	for _, m := range movies {
		docs = append(docs, m.ToRecord())
	}
	stats, err := w.Write(ctx, model.CollectionMovies, docs)
	for _, s := range stats {
		switch s.Collection {
		case model.CollectionMovies:
			movieStats = s
		case model.CollectionDirectors:
			directorStats = s
		}
	}
	return movieStats, directorStats, err
}

func (w *Writer) insertIfAbsent(ctx context.Context, collection, key string, doc model.GenericRecord) (bool, error) {
	filter := bson.M{key: doc[key]}
	_, err := w.store.FindOne(ctx, collection, filter)
	switch {
	case err == nil:
		w.log.WithFields(logrus.Fields{"collection": collection, key: doc[key]}).Debug("Already stored, skipping")
		return false, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, fmt.Errorf("lookup in %s: %w", collection, err)
	}

	if err := w.store.InsertOne(ctx, collection, bson.M(doc)); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			w.log.WithFields(logrus.Fields{"collection": collection, key: doc[key]}).Warn("Unique index rejected insert, skipping")
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeriveDirectors returns one director document per distinct non-empty name
// referenced by the movies, in first-seen order.
func DeriveDirectors(movies []model.GenericRecord) []model.GenericRecord {
	seen := make(map[string]bool)
	var out []model.GenericRecord
	for _, m := range movies {
		for _, name := range stringList(m["directors"]) {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, model.Director{Name: name}.ToRecord())
		}
	}
	return out
}

func stringList(v interface{}) []string {
	var items []interface{}
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return val
	case []interface{}:
		items = val
	case primitive.A:
		items = val
	default:
		return []string{utils.AsString(val)}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !utils.IsMissing(item) {
			out = append(out, utils.AsString(item))
		}
	}
	return out
}
