// Package mongo stores users and posts in MongoDB. Documents use ULID string
// ids and keep likes, saves and links as arrays on the post document.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection = "users"
	postsCollection = "posts"
)

// Store holds the client and database shared by Users and Posts.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

// Open connects to uri and verifies the connection.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		return nil, errors.New("mongo: database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database), now: time.Now}, nil
}

// EnsureIndexes creates the unique email index and the listing indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := s.db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "saves", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("posts index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

// Users exposes the user side of the store.
func (s *Store) Users() *Users {
	return &Users{coll: s.db.Collection(usersCollection), now: s.now}
}

// Posts exposes the post side of the store.
func (s *Store) Posts() *Posts {
	return &Posts{coll: s.db.Collection(postsCollection), now: s.now}
}

func inFilter(ids []string) bson.M {
	return bson.M{"_id": bson.M{"$in": ids}}
}
