package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
)

// Store persists run reports.
type Store interface {
	Save(ctx context.Context, r *Report) error
	Get(ctx context.Context, runID string) (*Report, error)
	// List returns the most recent reports, newest first.
	List(ctx context.Context, limit int) ([]*Report, error)
	Close(ctx context.Context) error
}

// MemoryStore keeps reports in process memory. It backs CLI runs and
// tests, where persistence across processes is not needed.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: map[string]*Report{}}
}

// Save stores a copy of the report.
func (s *MemoryStore) Save(_ context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *r
	s.reports[r.RunID] = &clone
	return nil
}

// Get retrieves a report by run ID.
func (s *MemoryStore) Get(_ context.Context, runID string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[runID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "report %s not found", runID)
	}
	clone := *r
	return &clone, nil
}

// List returns reports newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Report, 0, len(s.reports))
	for _, r := range s.reports {
		clone := *r
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close does nothing for the memory store.
func (s *MemoryStore) Close(context.Context) error { return nil }

var _ Store = (*MemoryStore)(nil)

// MongoStore persists reports to a MongoDB collection, keyed by run ID.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and pings it once to fail fast.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection("reports"),
	}, nil
}

// Save upserts the report document.
func (s *MongoStore) Save(ctx context.Context, r *Report) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": r.RunID}, r, options.Replace().SetUpsert(true))
	return err
}

// Get retrieves a report by run ID.
func (s *MongoStore) Get(ctx context.Context, runID string) (*Report, error) {
	var r Report
	err := s.coll.FindOne(ctx, bson.M{"_id": runID}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "report %s not found", runID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns reports newest first.
func (s *MongoStore) List(ctx context.Context, limit int) ([]*Report, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Report
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
