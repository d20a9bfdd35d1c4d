package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"memories/app/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var newestFirst = bson.D{{Key: "_id", Value: -1}}

// MongoPostRepository implements PostRepository on a MongoDB collection.
// Likes and comments are changed with single-document update operators, so
// concurrent toggles and appends cannot overwrite each other.
type MongoPostRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// ConnectMongo dials uri and returns a repository for database.collection.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*MongoPostRepository, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoPostRepository(client, client.Database(database).Collection(collection)), nil
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(client *mongo.Client, coll *mongo.Collection) *MongoPostRepository {
	return &MongoPostRepository{client: client, coll: coll}
}

// Create inserts a new post
func (r *MongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID.IsZero() {
		post.ID = bson.NewObjectID()
	}
	post.Normalize()

	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		return err
	}
	return nil
}

// GetByID retrieves a post by ID
func (r *MongoPostRepository) GetByID(ctx context.Context, id bson.ObjectID) (*models.Post, error) {
	return decodeOne(r.coll.FindOne(ctx, byID(id)))
}

// List retrieves a page of posts, newest first
func (r *MongoPostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return r.find(ctx, bson.D{}, opts)
}

// Count returns the number of stored posts
func (r *MongoPostRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.D{})
}

// Search returns posts whose title contains query (ignoring case) or that share a tag with tags
func (r *MongoPostRepository) Search(ctx context.Context, query string, tags []string) ([]*models.Post, error) {
	return r.find(ctx, searchFilter(query, tags), options.Find().SetSort(newestFirst))
}

// ListByName returns posts whose creator display name equals name
func (r *MongoPostRepository) ListByName(ctx context.Context, name string) ([]*models.Post, error) {
	return r.find(ctx, bson.D{{Key: "name", Value: name}}, options.Find().SetSort(newestFirst))
}

// Update overwrites the client editable fields of an existing post
func (r *MongoPostRepository) Update(ctx context.Context, id bson.ObjectID, fields models.PostFields) (*models.Post, error) {
	tags := fields.Tags
	if tags == nil {
		tags = []string{}
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: fields.Title},
		{Key: "message", Value: fields.Message},
		{Key: "name", Value: fields.Name},
		{Key: "tags", Value: tags},
		{Key: "selectedFile", Value: fields.SelectedFile},
	}}}
	return r.findOneAndUpdate(ctx, id, update)
}

// Delete removes a post. Deleting a missing post is not an error.
func (r *MongoPostRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	_, err := r.coll.DeleteOne(ctx, byID(id))
	return err
}

// ToggleLike adds or removes userID from likes with one pipeline update
func (r *MongoPostRepository) ToggleLike(ctx context.Context, id bson.ObjectID, userID string) (*models.Post, error) {
	return r.findOneAndUpdate(ctx, id, toggleLikePipeline(userID))
}

// AppendComment pushes value onto the post's comments
func (r *MongoPostRepository) AppendComment(ctx context.Context, id bson.ObjectID, value string) (*models.Post, error) {
	update := bson.D{{Key: "$push", Value: bson.D{{Key: "comments", Value: value}}}}
	return r.findOneAndUpdate(ctx, id, update)
}

// Ping checks the server connection
func (r *MongoPostRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close disconnects the client
func (r *MongoPostRepository) Close() error {
	return r.client.Disconnect(context.Background())
}

func (r *MongoPostRepository) find(ctx context.Context, filter any, opts *options.FindOptionsBuilder) ([]*models.Post, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	posts := []*models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	for _, post := range posts {
		post.Normalize()
	}
	return posts, nil
}

func (r *MongoPostRepository) findOneAndUpdate(ctx context.Context, id bson.ObjectID, update any) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeOne(r.coll.FindOneAndUpdate(ctx, byID(id), update, opts))
}

func decodeOne(res *mongo.SingleResult) (*models.Post, error) {
	var post models.Post
	if err := res.Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	post.Normalize()
	return &post, nil
}

func byID(id bson.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// searchFilter matches the title as a quoted, case-insensitive pattern so
// user input is never interpreted as a regular expression.
func searchFilter(query string, tags []string) bson.D {
	in := bson.A{}
	for _, tag := range tags {
		in = append(in, tag)
	}
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "title", Value: bson.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}},
		bson.D{{Key: "tags", Value: bson.D{{Key: "$in", Value: in}}}},
	}}}
}

// toggleLikePipeline removes userID from likes when present and appends it otherwise.
func toggleLikePipeline(userID string) mongo.Pipeline {
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{userID, likes}}},
			bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: likes},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userID}}}},
			}}},
			bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{userID}}}},
		}}}}}}},
	}
}
