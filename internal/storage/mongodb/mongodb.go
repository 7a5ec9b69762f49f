package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-httpservice/internal/storage"
	"github.com/sirosfoundation/go-httpservice/pkg/config"
)

// Store implements MongoDB storage
type Store struct {
	client   *mongo.Client
	database *mongo.Database
	cfg      *config.MongoDBConfig

	audit *AuditStore
}

// NewStore connects to MongoDB and prepares the audit collection. A positive
// retention adds a TTL index that expires records after that long.
func NewStore(ctx context.Context, cfg *config.MongoDBConfig, retention time.Duration) (*Store, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(time.Duration(cfg.Timeout) * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)
	s := &Store{
		client:   client,
		database: database,
		cfg:      cfg,
		audit:    &AuditStore{collection: database.Collection("audit")},
	}

	if err := s.createIndexes(ctx, retention); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context, retention time.Duration) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "time", Value: -1}}},
		{Keys: bson.D{{Key: "alias", Value: 1}, {Key: "time", Value: -1}}},
	}
	if retention > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "time", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention / time.Second)),
		})
	} else {
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: "time", Value: -1}}})
	}

	if _, err := s.audit.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

func (s *Store) Audit() storage.AuditStore { return s.audit }

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// AuditStore implements MongoDB audit storage
type AuditStore struct {
	collection *mongo.Collection
}

func (s *AuditStore) Append(ctx context.Context, rec *storage.AuditRecord) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	_, err := s.collection.InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("%w: failed to append audit record: %w", storage.ErrDatabase, err)
	}
	return nil
}

func (s *AuditStore) GetByID(ctx context.Context, id string) (*storage.AuditRecord, error) {
	var rec storage.AuditRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to get audit record: %w", storage.ErrDatabase, err)
	}
	return &rec, nil
}

func (s *AuditStore) List(ctx context.Context, filter storage.AuditFilter) ([]*storage.AuditRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "time", Value: -1}}).
		SetLimit(int64(filter.EffectiveLimit()))

	cursor, err := s.collection.Find(ctx, filterDocument(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list audit records: %w", storage.ErrDatabase, err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var records []*storage.AuditRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("%w: failed to decode audit records: %w", storage.ErrDatabase, err)
	}
	return records, nil
}

func (s *AuditStore) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{"time": bson.M{"$lt": t}})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prune audit records: %w", storage.ErrDatabase, err)
	}
	return result.DeletedCount, nil
}

func filterDocument(f storage.AuditFilter) bson.M {
	doc := bson.M{}
	if f.Owner != "" {
		doc["owner"] = f.Owner
	}
	if f.Alias != "" {
		doc["alias"] = f.Alias
	}
	if f.Event != "" {
		doc["event"] = f.Event
	}
	if !f.Since.IsZero() {
		doc["time"] = bson.M{"$gte": f.Since}
	}
	return doc
}
