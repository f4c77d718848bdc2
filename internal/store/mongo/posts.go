package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inkwell.blog/internal/blog"
	"inkwell.blog/internal/ids"
	"inkwell.blog/internal/media"
	"inkwell.blog/internal/obs"
)

type postDoc struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Content     string    `bson:"content"`
	ImageURL    string    `bson:"image"`
	ImageID     string    `bson:"imageId"`
	Author      string    `bson:"author"`
	Likes       []string  `bson:"likes"`
	Saves       []string  `bson:"saves"`
	LinkedBlogs []string  `bson:"linkedBlogs"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func newPostDoc(p blog.Post) postDoc {
	return postDoc{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		ImageURL:    p.Image.URL,
		ImageID:     p.Image.ID,
		Author:      p.AuthorID,
		Likes:       nonNil(p.Likes),
		Saves:       nonNil(p.Saves),
		LinkedBlogs: nonNil(p.Links),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d postDoc) post() blog.Post {
	return blog.Post{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		Image:     media.Ref{URL: d.ImageURL, ID: d.ImageID},
		AuthorID:  d.Author,
		Likes:     nonNil(d.Likes),
		Saves:     nonNil(d.Saves),
		Links:     nonNil(d.LinkedBlogs),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// Posts is the MongoDB blog.Store.
type Posts struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ blog.Store = (*Posts)(nil)

func (s *Posts) Create(ctx context.Context, p *blog.Post) error {
	if p == nil {
		return fmt.Errorf("%w: post is nil", blog.ErrInvalidInput)
	}
	if err := s.checkLinks(ctx, p.Links); err != nil {
		return err
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	if p.ID == "" {
		p.ID = ids.At(now)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	p.Likes, p.Saves, p.Links = []string{}, []string{}, nonNil(p.Links)
	_, err := s.coll.InsertOne(ctx, newPostDoc(*p))
	return err
}

func (s *Posts) Get(ctx context.Context, id string) (blog.Post, error) {
	var doc postDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return blog.Post{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.Post{}, err
	}
	return doc.post(), nil
}

func (s *Posts) List(ctx context.Context, offset, limit int) ([]blog.Post, int, error) {
	total, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	if offset < 0 || int64(offset) >= total || limit < 1 {
		return []blog.Post{}, int(total), nil
	}
	cur, err := s.coll.Find(ctx, bson.M{}, pageOptions(offset, limit))
	if err != nil {
		return nil, 0, err
	}
	posts, err := decodePosts(ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	return posts, int(total), nil
}

func (s *Posts) ListSavedBy(ctx context.Context, userID string) ([]blog.Post, error) {
	cur, err := s.coll.Find(ctx, bson.M{"saves": userID}, options.Find().SetSort(newestFirst()))
	if err != nil {
		return nil, err
	}
	return decodePosts(ctx, cur)
}

func (s *Posts) Update(ctx context.Context, id string, upd blog.Update) (blog.Post, error) {
	if upd.Links != nil {
		if err := s.checkLinks(ctx, *upd.Links); err != nil {
			return blog.Post{}, err
		}
	}
	var doc postDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": postSet(upd, s.now().UTC().Truncate(time.Millisecond))},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return blog.Post{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.Post{}, err
	}
	return doc.post(), nil
}

// Delete removes the post, then pulls its id from other posts' links. A
// failure in the second step leaves dangling links, which reads skip.
func (s *Posts) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return blog.ErrNotFound
	}
	if _, err := s.coll.UpdateMany(ctx, bson.M{"linkedBlogs": id}, bson.M{"$pull": bson.M{"linkedBlogs": id}}); err != nil {
		obs.Logger().WithError(err).WithField("post_id", id).Warn("unlink deleted post failed")
	}
	return nil
}

// Toggle flips membership with a single-document pipeline update.
func (s *Posts) Toggle(ctx context.Context, id string, set blog.Set, userID string) (blog.Post, error) {
	field, err := setField(set)
	if err != nil {
		return blog.Post{}, err
	}
	var doc postDoc
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, toggleUpdate(field, userID),
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return blog.Post{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.Post{}, err
	}
	return doc.post(), nil
}

func (s *Posts) Titles(ctx context.Context, postIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	cur, err := s.coll.Find(ctx, inFilter(postIDs), options.Find().SetProjection(bson.M{"title": 1}))
	if err != nil {
		return nil, err
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = d.Title
	}
	return out, nil
}

func (s *Posts) checkLinks(ctx context.Context, links []string) error {
	if len(links) == 0 {
		return nil
	}
	n, err := s.coll.CountDocuments(ctx, inFilter(links))
	if err != nil {
		return err
	}
	if int(n) != len(links) {
		return fmt.Errorf("%w: linked post does not exist", blog.ErrInvalidInput)
	}
	return nil
}

func setField(set blog.Set) (string, error) {
	switch set {
	case blog.Likes:
		return "likes", nil
	case blog.Saves:
		return "saves", nil
	default:
		return "", fmt.Errorf("%w: unknown set %d", blog.ErrInvalidInput, set)
	}
}

// toggleUpdate removes userID from field when present and appends it
// otherwise. A missing array counts as empty.
func toggleUpdate(field, userID string) mongo.Pipeline {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}}}
	member := bson.A{userID}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{userID, current}}},
			bson.D{{Key: "$setDifference", Value: bson.A{current, member}}},
			bson.D{{Key: "$concatArrays", Value: bson.A{current, member}}},
		}}}}}}},
	}
}

func postSet(upd blog.Update, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Content != nil {
		set["content"] = *upd.Content
	}
	if upd.Image != nil {
		set["image"] = upd.Image.URL
		set["imageId"] = upd.Image.ID
	}
	if upd.Links != nil {
		set["linkedBlogs"] = nonNil(*upd.Links)
	}
	return set
}

func newestFirst() bson.D {
	return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
}

func pageOptions(offset, limit int) *options.FindOptions {
	return options.Find().
		SetSort(newestFirst()).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
}

func decodePosts(ctx context.Context, cur *mongo.Cursor) ([]blog.Post, error) {
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	posts := make([]blog.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.post())
	}
	return posts, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
