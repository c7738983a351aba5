// Package mongodb implements the repository interfaces on MongoDB.
//
// Users live in the "users" collection:
//
//	{ _id, firstName, lastName, email, phone?, googleId?, picture?, hasRSVPd, createdAt, updatedAt }
//
// Uniqueness of email and googleId is enforced by indexes created at startup,
// not by application code, so concurrent writers are arbitrated by the server.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/event-rsvp/internal/repository"
)

const (
	usersCollection = "users"
	defaultDatabase = "rsvp"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a mongo.Client and the users collection.
type DB struct {
	client *mongo.Client
	users  *mongo.Collection
	state  *connState
	logger *slog.Logger
}

// New connects to MongoDB, verifies the connection and ensures indexes.
//
// CONNECTION OPTIONS:
//   - pool of at most 10 sockets
//   - 5s server selection timeout: operations fail fast when no server is reachable
//   - 45s socket timeout for idle/hung sockets
//
// Reconnecting after a drop is the driver's job. We only watch the server
// heartbeats so /health can report "Connected" or "Disconnected".
func New(ctx context.Context, uri string, logger *slog.Logger) (*DB, error) {
	state := &connState{logger: logger}

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(5 * time.Second).
		SetSocketTimeout(45 * time.Second).
		SetServerMonitor(&event.ServerMonitor{
			ServerHeartbeatSucceeded: state.heartbeatSucceeded,
			ServerHeartbeatFailed:    state.heartbeatFailed,
		})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}
	state.markUp()

	dbName := DatabaseName(uri)
	db := &DB{
		client: client,
		users:  client.Database(dbName).Collection(usersCollection),
		state:  state,
		logger: logger,
	}

	if err := db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: creating indexes: %w", err)
	}

	logger.Info("mongodb connected", slog.String("database", dbName))
	return db, nil
}

// DatabaseName extracts the database from the URI path
// ("mongodb://host:27017/rsvp" → "rsvp"), falling back to "rsvp".
func DatabaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultDatabase
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return defaultDatabase
	}
	return name
}

// ensureIndexes creates the unique and lookup indexes. CreateMany is a no-op
// for indexes that already exist with the same definition.
//
// googleId is sparse: documents without the field are left out of the index,
// so any number of users can exist without a linked Google account.
func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_1"),
		},
		{
			Keys:    bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("googleId_1"),
		},
		{
			Keys: bson.D{{Key: "firstName", Value: 1}, {Key: "lastName", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	})
	return err
}

// Healthy reports the last observed connection state.
func (db *DB) Healthy(_ context.Context) bool {
	return db.state.up()
}

// Close disconnects the client, waiting at most 10s for in-use sockets.
func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo: disconnecting: %w", err)
	}
	db.state.markDown()
	db.logger.Info("mongodb disconnected")
	return nil
}

// connState tracks connected/disconnected/reconnected transitions from
// server heartbeats. Heartbeats arrive on driver goroutines, hence atomics.
type connState struct {
	connected atomic.Bool
	seen      atomic.Bool // true once the first connection was established
	logger    *slog.Logger
}

func (s *connState) up() bool { return s.connected.Load() }

func (s *connState) markUp() {
	if !s.connected.CompareAndSwap(false, true) {
		return
	}
	if s.seen.Swap(true) {
		s.logger.Info("mongodb reconnected")
	}
}

func (s *connState) markDown() {
	s.connected.Store(false)
}

func (s *connState) heartbeatSucceeded(_ *event.ServerHeartbeatSucceededEvent) {
	s.markUp()
}

func (s *connState) heartbeatFailed(e *event.ServerHeartbeatFailedEvent) {
	if s.connected.CompareAndSwap(true, false) {
		s.logger.Warn("mongodb disconnected",
			slog.String("connection", e.ConnectionID),
			slog.String("error", fmt.Sprint(e.Failure)),
		)
	}
}
