package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"

	"memories/app/models"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// DefaultConflictRetries bounds how often a read-modify-write is retried
// after badger reports a transaction conflict.
const DefaultConflictRetries = 5

// BadgerPostRepository implements PostRepository using BadgerDB.
// Each post is one JSON document stored under post:<hex id>, so key order is id order.
type BadgerPostRepository struct {
	db      *badger.DB
	retries int
}

// OpenBadger opens the database at path. An empty path opens an in-memory database.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}

// NewBadgerPostRepository creates a new BadgerPostRepository
func NewBadgerPostRepository(db *badger.DB, retries int) *BadgerPostRepository {
	if retries < 0 {
		retries = 0
	}
	return &BadgerPostRepository{db: db, retries: retries}
}

// Create creates a new post
func (r *BadgerPostRepository) Create(ctx context.Context, post *models.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if post.ID.IsZero() {
		post.ID = bson.NewObjectID()
	}
	post.Normalize()

	data, err := marshalEntity(post)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(postKey(post.ID), data)
	})
}

// GetByID retrieves a post by ID
func (r *BadgerPostRepository) GetByID(ctx context.Context, id bson.ObjectID) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var post *models.Post
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		post, err = getPost(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// List retrieves a page of posts, newest first
func (r *BadgerPostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	posts := []*models.Post{}
	count := 0
	err := r.scan(func(post *models.Post) bool {
		if count < offset {
			count++
			return true
		}
		if count >= offset+limit {
			return false
		}
		posts = append(posts, post)
		count++
		return true
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Count returns the number of stored posts
func (r *BadgerPostRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var total int64
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(PostKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			total++
		}
		return nil
	})
	return total, err
}

// Search returns posts whose title contains query (ignoring case) or that share a tag with tags
func (r *BadgerPostRepository) Search(ctx context.Context, query string, tags []string) ([]*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	posts := []*models.Post{}
	err := r.scan(func(post *models.Post) bool {
		if MatchesSearch(post, query, tags) {
			posts = append(posts, post)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ListByName returns posts whose creator display name equals name
func (r *BadgerPostRepository) ListByName(ctx context.Context, name string) ([]*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	posts := []*models.Post{}
	err := r.scan(func(post *models.Post) bool {
		if post.Name == name {
			posts = append(posts, post)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Update overwrites the client editable fields of an existing post
func (r *BadgerPostRepository) Update(ctx context.Context, id bson.ObjectID, fields models.PostFields) (*models.Post, error) {
	return r.mutate(ctx, id, func(post *models.Post) {
		post.Apply(fields)
	})
}

// Delete removes a post. Deleting a missing post is not an error.
func (r *BadgerPostRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(postKey(id))
	})
}

// ToggleLike adds or removes userID from the post's likes in one transaction
func (r *BadgerPostRepository) ToggleLike(ctx context.Context, id bson.ObjectID, userID string) (*models.Post, error) {
	return r.mutate(ctx, id, func(post *models.Post) {
		post.ToggleLike(userID)
	})
}

// AppendComment appends value to the post's comments in one transaction
func (r *BadgerPostRepository) AppendComment(ctx context.Context, id bson.ObjectID, value string) (*models.Post, error) {
	return r.mutate(ctx, id, func(post *models.Post) {
		post.AddComment(value)
	})
}

// Ping reports whether the database is usable
func (r *BadgerPostRepository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close closes the underlying database
func (r *BadgerPostRepository) Close() error {
	return r.db.Close()
}

// Backup writes a full backup of the database to w
func (r *BadgerPostRepository) Backup(w io.Writer) (uint64, error) {
	return r.db.Backup(w, 0)
}

// Load restores a backup previously written by Backup
func (r *BadgerPostRepository) Load(rd io.Reader) error {
	return r.db.Load(rd, 16)
}

// mutate runs fn against the stored post inside a read-write transaction.
// Badger aborts the commit with ErrConflict when a concurrent transaction
// wrote the same key, in which case the whole read-modify-write is retried.
func (r *BadgerPostRepository) mutate(ctx context.Context, id bson.ObjectID, fn func(*models.Post)) (*models.Post, error) {
	var (
		post *models.Post
		err  error
	)
	for attempt := 0; attempt <= r.retries; attempt++ {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		err = r.db.Update(func(txn *badger.Txn) error {
			p, err := getPost(txn, id)
			if err != nil {
				return err
			}
			fn(p)

			data, err := marshalEntity(p)
			if err != nil {
				return err
			}
			post = p
			return txn.Set(postKey(id), data)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// scan walks posts newest first until fn returns false
func (r *BadgerPostRepository) scan(fn func(*models.Post) bool) error {
	return r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(PostKeyPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var post models.Post
			err := it.Item().Value(func(val []byte) error {
				return unmarshalEntity(val, &post)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal post: %v", err)
			}
			post.Normalize()
			if !fn(&post) {
				return nil
			}
		}
		return nil
	})
}

func getPost(txn *badger.Txn, id bson.ObjectID) (*models.Post, error) {
	item, err := txn.Get(postKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = item.Value(func(val []byte) error {
		return unmarshalEntity(val, &post)
	})
	if err != nil {
		return nil, err
	}
	post.Normalize()
	return &post, nil
}
