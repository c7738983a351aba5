package mongodb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"mongodb://localhost:27017/bachelor-party-db", "bachelor-party-db"},
		{"mongodb://user:pw@localhost:27017/rsvp?authSource=admin", "rsvp"},
		{"mongodb+srv://cluster0.example.net/events", "events"},
		{"mongodb://localhost:27017", "rsvp"},
		{"mongodb://localhost:27017/", "rsvp"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, DatabaseName(tt.uri))
		})
	}
}

func TestPatchUpdate_OnlyNonNilFields(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rsvp := true
	email := "Jo@Doe.COM"

	got := patchUpdate(model.UserPatch{HasRSVPd: &rsvp, Email: &email}, ts)

	set, ok := got["$set"].(bson.M)
	require.True(t, ok, "$set must be a bson.M")
	assert.Equal(t, bson.M{
		"updatedAt": ts,
		"hasRSVPd":  true,
		"email":     "jo@doe.com",
	}, set)
}

func TestDocumentRoundTrip(t *testing.T) {
	gid := "g-1"
	u := &model.User{
		FirstName: "Jo", LastName: "Doe", Email: "jo@doe.com",
		GoogleID: &gid, Picture: "https://example.com/p.png", HasRSVPd: true,
	}

	doc := toDocument(u)
	assert.True(t, doc.ID.IsZero(), "toDocument must leave _id for Create to assign")

	back := doc.toModel()
	assert.Equal(t, u.FirstName, back.FirstName)
	assert.Equal(t, u.Email, back.Email)
	require.NotNil(t, back.GoogleID)
	assert.Equal(t, "g-1", *back.GoogleID)
	assert.True(t, back.HasRSVPd)
}

func TestDuplicateField(t *testing.T) {
	assert.Equal(t, "googleId", duplicateField(errors.New("E11000 duplicate key error collection: rsvp.users index: googleId_1 dup key")))
	assert.Equal(t, "email", duplicateField(errors.New("E11000 duplicate key error collection: rsvp.users index: email_1 dup key")))
}

func TestMalformedIDIsNotFound(t *testing.T) {
	// These paths return before touching the collection.
	db := &DB{}

	_, err := db.GetByID(context.Background(), "not-an-object-id")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = db.Update(context.Background(), "zzz", model.UserPatch{})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	err = db.Delete(context.Background(), "123")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestConnState_Transitions(t *testing.T) {
	s := &connState{logger: discardLogger()}
	assert.False(t, s.up())

	s.markUp()
	assert.True(t, s.up())

	s.heartbeatFailed(&event.ServerHeartbeatFailedEvent{Failure: errors.New("connection reset")})
	assert.False(t, s.up())

	s.heartbeatSucceeded(&event.ServerHeartbeatSucceededEvent{})
	assert.True(t, s.up())
	assert.True(t, s.seen.Load())
}

// =========================================================================
// INTEGRATION (needs a running MongoDB: MONGODB_TEST_URI=mongodb://localhost:27017/rsvp-test)
// =========================================================================

func newIntegrationDB(t *testing.T) *DB {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx := context.Background()
	db, err := New(ctx, uri, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.users.DeleteMany(context.Background(), bson.M{})
		_ = db.Close()
	})
	_, err = db.users.DeleteMany(ctx, bson.M{})
	require.NoError(t, err)
	return db
}

func TestIntegration_UserLifecycle(t *testing.T) {
	db := newIntegrationDB(t)
	ctx := context.Background()

	u := &model.User{FirstName: "Jo", LastName: "Doe", Email: "Jo@Doe.com"}
	require.NoError(t, db.Create(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "jo@doe.com", u.Email)

	found, err := db.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.FirstName, found.FirstName)
	assert.False(t, found.HasRSVPd)
	assert.Nil(t, found.GoogleID)

	// duplicate email, different case
	err = db.Create(ctx, &model.User{FirstName: "X", LastName: "Y", Email: "JO@doe.com"})
	assert.True(t, errors.Is(err, apperror.ErrDuplicateKey))

	// several users without googleId coexist under the sparse index
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(ctx, &model.User{
			FirstName: "N", LastName: "N", Email: fmt.Sprintf("n%d@x.com", i),
		}))
	}

	rsvp := true
	updated, err := db.Update(ctx, u.ID, model.UserPatch{HasRSVPd: &rsvp})
	require.NoError(t, err)
	assert.True(t, updated.HasRSVPd)
	assert.Equal(t, "Jo", updated.FirstName)

	list, err := db.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)

	require.NoError(t, db.Delete(ctx, u.ID))
	assert.True(t, errors.Is(db.Delete(ctx, u.ID), apperror.ErrNotFound))
	assert.True(t, db.Healthy(ctx))
}
