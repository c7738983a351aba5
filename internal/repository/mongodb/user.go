package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/model"
)

// userDocument is the persisted shape of a user.
//
// GoogleID is a pointer with omitempty: an unlinked user has no googleId
// field at all, which keeps it out of the sparse unique index.
type userDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	FirstName string             `bson:"firstName"`
	LastName  string             `bson:"lastName"`
	Email     string             `bson:"email"`
	Phone     string             `bson:"phone,omitempty"`
	GoogleID  *string            `bson:"googleId,omitempty"`
	Picture   string             `bson:"picture,omitempty"`
	HasRSVPd  bool               `bson:"hasRSVPd"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func toDocument(u *model.User) userDocument {
	return userDocument{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		GoogleID:  u.GoogleID,
		Picture:   u.Picture,
		HasRSVPd:  u.HasRSVPd,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (d userDocument) toModel() *model.User {
	return &model.User{
		ID:        d.ID.Hex(),
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Phone:     d.Phone,
		GoogleID:  d.GoogleID,
		Picture:   d.Picture,
		HasRSVPd:  d.HasRSVPd,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// patchUpdate translates a UserPatch into a $set document. updatedAt is
// always set.
func patchUpdate(p model.UserPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if p.FirstName != nil {
		set["firstName"] = *p.FirstName
	}
	if p.LastName != nil {
		set["lastName"] = *p.LastName
	}
	if p.Email != nil {
		set["email"] = strings.ToLower(*p.Email)
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Picture != nil {
		set["picture"] = *p.Picture
	}
	if p.GoogleID != nil {
		set["googleId"] = *p.GoogleID
	}
	if p.HasRSVPd != nil {
		set["hasRSVPd"] = *p.HasRSVPd
	}
	return bson.M{"$set": set}
}

// duplicateField maps a duplicate-key write error to the API field name.
// The server names the violated index in the message, e.g.
// "E11000 duplicate key error collection: rsvp.users index: googleId_1".
func duplicateField(err error) string {
	if strings.Contains(err.Error(), "googleId") {
		return "googleId"
	}
	return "email"
}

// now returns the current time at MongoDB's millisecond precision, so the
// struct we return equals what a later read decodes.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Create inserts a user. The ObjectID is generated client-side so we don't
// have to type-assert InsertOneResult.InsertedID.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	ts := now()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = ts
	user.UpdatedAt = ts

	doc := toDocument(user)
	doc.ID = primitive.NewObjectID()

	if _, err := db.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.DuplicateKey("user", duplicateField(err))
		}
		return fmt.Errorf("mongo: creating user: %w", err)
	}

	user.ID = doc.ID.Hex()
	return nil
}

// GetByID looks a user up by ObjectID hex. A malformed ID cannot match any
// document, so it is reported as not found rather than as a fault.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.NotFound("user", id)
	}
	return db.findOne(ctx, bson.M{"_id": oid}, id)
}

func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return db.findOne(ctx, bson.M{"email": email}, email)
}

func (db *DB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.findOne(ctx, bson.M{"googleId": googleID}, googleID)
}

func (db *DB) findOne(ctx context.Context, filter bson.M, key string) (*model.User, error) {
	var doc userDocument
	if err := db.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("mongo: finding user %s: %w", key, err)
	}
	return doc.toModel(), nil
}

// List returns every user sorted by createdAt descending.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	cursor, err := db.users.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing users: %w", err)
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding users: %w", err)
	}

	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, *d.toModel())
	}
	return users, nil
}

// Update applies the patch atomically with findOneAndUpdate and returns the
// post-update document.
func (db *DB) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.NotFound("user", id)
	}

	var doc userDocument
	err = db.users.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		patchUpdate(patch, now()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, apperror.NotFound("user", id)
		case mongo.IsDuplicateKeyError(err):
			return nil, apperror.DuplicateKey("user", duplicateField(err))
		}
		return nil, fmt.Errorf("mongo: updating user %s: %w", id, err)
	}

	return doc.toModel(), nil
}

func (db *DB) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperror.NotFound("user", id)
	}

	res, err := db.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo: deleting user %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
