package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Server error codes the adapter translates.
const (
	codeNamespaceNotFound = 26
	codeNamespaceExists   = 48
)

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    logrus.FieldLogger
}

// ConnectMongo opens a client, pings the server and binds the database.
func ConnectMongo(ctx context.Context, uri, dbName string, timeout time.Duration, log logrus.FieldLogger) (*MongoStore, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.WithField("database", dbName).Info("Connected to MongoDB")
	return NewMongoStore(client, dbName, log), nil
}

// NewMongoStore wraps an existing client.
func NewMongoStore(client *mongo.Client, dbName string, log logrus.FieldLogger) *MongoStore {
	return &MongoStore{client: client, db: client.Database(dbName), log: log}
}

func (s *MongoStore) Find(ctx context.Context, collection string, filter bson.M) ([]bson.M, error) {
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := s.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return docs, nil
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", collection, err)
	}
	return doc, nil
}

func (s *MongoStore) InsertOne(ctx context.Context, collection string, doc interface{}) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert into %s: %w: %v", collection, ErrDuplicateKey, err)
	}
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

func (s *MongoStore) CreateCollection(ctx context.Context, name string) error {
	err := s.db.CreateCollection(ctx, name)
	if hasCode(err, codeNamespaceExists) {
		return fmt.Errorf("create collection %s: %w", name, ErrNamespaceExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

func (s *MongoStore) CreateUniqueIndex(ctx context.Context, collection, field string) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetName(UniqueIndexName(field)).SetUnique(true),
	}
	if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("failed to create index %s on %s: %w", UniqueIndexName(field), collection, err)
	}
	return nil
}

func (s *MongoStore) DropView(ctx context.Context, name string) error {
	err := s.db.RunCommand(ctx, bson.D{{Key: "drop", Value: name}}).Err()
	if hasCode(err, codeNamespaceNotFound) {
		return fmt.Errorf("drop %s: %w", name, ErrViewNotFound)
	}
	if err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	return nil
}

func (s *MongoStore) CreateView(ctx context.Context, name, source string, pipeline bson.A) error {
	if err := s.db.CreateView(ctx, name, source, pipeline); err != nil {
		if hasCode(err, codeNamespaceExists) {
			return fmt.Errorf("create view %s: %w", name, ErrNamespaceExists)
		}
		return fmt.Errorf("create view %s: %w", name, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func hasCode(err error, code int32) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == code
	}
	return false
}
