package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"movie-pipeline/internal/views"
	"movie-pipeline/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
)

type memoryView struct {
	source string
	def    views.Definition
}

// MemoryStore keeps collections in process. Documents go through a BSON
// round trip so they come back with the types MongoDB would return. Views are
// resolved by name against known definitions and evaluated on read.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]bson.M
	unique      map[string][]string
	views       map[string]memoryView
	defs        []views.Definition
}

// NewMemoryStore creates an empty store able to host the given views.
func NewMemoryStore(defs []views.Definition) *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]bson.M),
		unique:      make(map[string][]string),
		views:       make(map[string]memoryView),
		defs:        defs,
	}
}

func (s *MemoryStore) Find(_ context.Context, collection string, filter bson.M) ([]bson.M, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []bson.M
	if v, ok := s.views[collection]; ok {
		docs = v.def.Evaluate(s.collections[v.source])
		// evaluated rows use Go types; normalize like stored documents
		for i, d := range docs {
			norm, err := roundTrip(d)
			if err != nil {
				return nil, err
			}
			docs[i] = norm
		}
	} else {
		docs = s.collections[collection]
	}

	var out []bson.M
	for _, d := range docs {
		if matches(d, filter) {
			out = append(out, copyDoc(d))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error) {
	docs, err := s.Find(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (s *MemoryStore) InsertOne(_ context.Context, collection string, doc interface{}) error {
	norm, err := roundTrip(doc)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[collection]; ok {
		return fmt.Errorf("insert into %s: cannot write to a view", collection)
	}
	for _, field := range s.unique[collection] {
		for _, existing := range s.collections[collection] {
			if valuesEqual(existing[field], norm[field]) {
				return fmt.Errorf("insert into %s: %w: %s=%v", collection, ErrDuplicateKey, field, norm[field])
			}
		}
	}
	s.collections[collection] = append(s.collections[collection], norm)
	return nil
}

func (s *MemoryStore) ListCollectionNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections)+len(s.views))
	for name := range s.collections {
		names = append(names, name)
	}
	for name := range s.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) CreateCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exists(name) {
		return fmt.Errorf("create collection %s: %w", name, ErrNamespaceExists)
	}
	s.collections[name] = []bson.M{}
	return nil
}

func (s *MemoryStore) CreateUniqueIndex(_ context.Context, collection, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.unique[collection] {
		if f == field {
			return nil
		}
	}
	seen := make(map[string]bool)
	for _, d := range s.collections[collection] {
		key := fmt.Sprintf("%T:%v", d[field], d[field])
		if seen[key] {
			return fmt.Errorf("failed to create index %s on %s: %w", UniqueIndexName(field), collection, ErrDuplicateKey)
		}
		seen[key] = true
	}
	s.unique[collection] = append(s.unique[collection], field)
	return nil
}

func (s *MemoryStore) DropView(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[name]; !ok {
		return fmt.Errorf("drop %s: %w", name, ErrViewNotFound)
	}
	delete(s.views, name)
	return nil
}

// CreateView registers a view. The pipeline must be the compiled form of one
// of the store's definitions.
func (s *MemoryStore) CreateView(_ context.Context, name, source string, pipeline bson.A) error {
	def, ok := views.Find(s.defs, name)
	if !ok || !reflect.DeepEqual(def.Pipeline(), pipeline) {
		return fmt.Errorf("create view %s: %w", name, ErrUnsupportedView)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exists(name) {
		return fmt.Errorf("create view %s: %w", name, ErrNamespaceExists)
	}
	s.views[name] = memoryView{source: source, def: def}
	return nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

// Count returns the number of documents in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *MemoryStore) exists(name string) bool {
	_, isCollection := s.collections[name]
	_, isView := s.views[name]
	return isCollection || isView
}

func roundTrip(doc interface{}) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func copyDoc(d bson.M) bson.M {
	out := make(bson.M, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	if utils.IsNumeric(a) && utils.IsNumeric(b) {
		return utils.Numeric(a) == utils.Numeric(b)
	}
	return reflect.DeepEqual(a, b)
}
