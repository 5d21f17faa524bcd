// Package mongo implements store.Store on MongoDB. Apply runs inside a
// multi-document transaction, so the server must be a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/settle"
	"github.com/xraph/settle/store"
)

// DefaultCollection holds one document per state key.
const DefaultCollection = "settle_state"

// CommitsCollection holds the document every Apply transaction updates.
const CommitsCollection = "settle_commits"

const commitDocID = "apply"

// compile-time interface check
var _ store.Store = (*Store)(nil)

type stateDoc struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store implements store.Store using a single collection.
type Store struct {
	client  *mongo.Client
	col     *mongo.Collection
	commits *mongo.Collection
}

// New wraps a connected client.
func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:  client,
		col:     db.Collection(DefaultCollection),
		commits: db.Collection(CommitsCollection),
	}
}

// Open connects to uri and uses the named database.
func Open(uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("settle/mongo: connect: %w", err)
	}
	return New(client, database), nil
}

// Collection returns the state collection for direct access.
func (s *Store) Collection() *mongo.Collection { return s.col }

// Migrate creates the secondary indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("settle/mongo: migrate %s indexes: %w", DefaultCollection, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var doc stateDoc
	err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, settle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("settle/mongo: get %s: %w", key, err)
	}
	return doc.Value, nil
}

func (s *Store) Apply(ctx context.Context, ops []store.Op) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("settle/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	checks, writes := store.Split(ops)
	now := time.Now().UTC()
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		// Every batch writes the commit document, so concurrent batches
		// collide on it and the losing transaction is retried from here.
		_, err := s.commits.UpdateOne(ctx, bson.M{"_id": commitDocID},
			bson.M{"$inc": bson.M{"batches": 1}}, options.UpdateOne().SetUpsert(true))
		if err != nil {
			return nil, err
		}
		for _, op := range checks {
			var doc stateDoc
			err := s.col.FindOne(ctx, bson.M{"_id": op.Key}).Decode(&doc)
			if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("check %s: %w", op.Key, err)
			}
			if !op.Holds(doc.Value, err == nil) {
				return nil, fmt.Errorf("%w: %s", settle.ErrConflict, op.Key)
			}
		}
		for _, op := range writes {
			if op.Delete {
				if _, err := s.col.DeleteOne(ctx, bson.M{"_id": op.Key}); err != nil {
					return nil, err
				}
				continue
			}
			update := bson.M{"$set": bson.M{"value": op.Value, "updated_at": now}}
			if _, err := s.col.UpdateOne(ctx, bson.M{"_id": op.Key}, update, options.UpdateOne().SetUpsert(true)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("settle/mongo: apply: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
