// Package store is the document store consumed by the pipeline. MongoStore
// talks to MongoDB; MemoryStore keeps everything in process.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrViewNotFound    = errors.New("view not found")
	ErrNamespaceExists = errors.New("namespace already exists")
	ErrUnsupportedView = errors.New("unsupported view pipeline")
)

// Store is the set of operations the pipeline needs from a document store.
type Store interface {
	Find(ctx context.Context, collection string, filter bson.M) ([]bson.M, error)
	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error)
	// InsertOne returns an error wrapping ErrDuplicateKey when a unique index rejects the document.
	InsertOne(ctx context.Context, collection string, doc interface{}) error
	ListCollectionNames(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, name string) error
	CreateUniqueIndex(ctx context.Context, collection, field string) error
	// DropView returns an error wrapping ErrViewNotFound when no such view exists.
	DropView(ctx context.Context, name string) error
	CreateView(ctx context.Context, name, source string, pipeline bson.A) error
	Close(ctx context.Context) error
}

// UniqueIndexName follows the <field>_unique naming used for every unique index.
func UniqueIndexName(field string) string {
	return field + "_unique"
}
