package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inkwell.blog/internal/auth"
	"inkwell.blog/internal/ids"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	Bio          string    `bson:"bio"`
	AvatarURL    string    `bson:"avatar"`
	AvatarID     string    `bson:"avatarId"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (d userDoc) user() auth.User {
	return auth.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Bio:          d.Bio,
		Avatar:       d.AvatarURL,
		AvatarID:     d.AvatarID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// Users is the MongoDB auth.UserStore.
type Users struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ auth.UserStore = (*Users)(nil)

func (s *Users) Create(ctx context.Context, u *auth.User) error {
	if u == nil {
		return fmt.Errorf("%w: user is nil", auth.ErrInvalidInput)
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	if u.ID == "" {
		u.ID = ids.At(now)
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = now, now
	doc := userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Bio:          u.Bio,
		AvatarURL:    u.Avatar,
		AvatarID:     u.AvatarID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Users) Find(ctx context.Context, id string) (auth.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Users) FindByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *Users) Update(ctx context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	set := userSet(upd, s.now().UTC().Truncate(time.Millisecond))
	var doc userDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return auth.User{}, auth.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return auth.User{}, auth.ErrConflict
	case err != nil:
		return auth.User{}, err
	}
	return doc.user(), nil
}

func (s *Users) Names(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	cur, err := s.coll.Find(ctx, inFilter(userIDs), options.Find().SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = d.Name
	}
	return out, nil
}

func (s *Users) findOne(ctx context.Context, filter bson.M) (auth.User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return doc.user(), nil
}

// userSet renders the $set document for a partial profile change.
func userSet(upd auth.UserUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Email != nil {
		set["email"] = strings.ToLower(strings.TrimSpace(*upd.Email))
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Avatar != nil {
		set["avatar"] = upd.Avatar.URL
		set["avatarId"] = upd.Avatar.ID
	}
	return set
}
