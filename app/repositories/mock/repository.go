package mock

import (
	"context"
	"sort"
	"sync"

	"memories/app/models"
	"memories/app/repositories"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PostRepository is an in-memory repositories.PostRepository. Setting Err
// makes every call fail with it.
type PostRepository struct {
	posts map[bson.ObjectID]*models.Post
	mutex sync.RWMutex

	Err    error
	Writes int
}

var _ repositories.PostRepository = (*PostRepository)(nil)

func NewPostRepository() *PostRepository {
	return &PostRepository{
		posts: make(map[bson.ObjectID]*models.Post),
	}
}

func (m *PostRepository) Create(ctx context.Context, post *models.Post) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if post.ID.IsZero() {
		post.ID = bson.NewObjectID()
	}
	post.Normalize()
	m.posts[post.ID] = clone(post)
	m.Writes++
	return nil
}

func (m *PostRepository) GetByID(ctx context.Context, id bson.ObjectID) (*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	post, exists := m.posts[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return clone(post), nil
}

func (m *PostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	posts := m.sorted(func(*models.Post) bool { return true })
	if offset >= len(posts) {
		return []*models.Post{}, nil
	}
	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[offset:end], nil
}

func (m *PostRepository) Count(ctx context.Context) (int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return int64(len(m.posts)), nil
}

func (m *PostRepository) Search(ctx context.Context, query string, tags []string) ([]*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.sorted(func(p *models.Post) bool {
		return repositories.MatchesSearch(p, query, tags)
	}), nil
}

func (m *PostRepository) ListByName(ctx context.Context, name string) ([]*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.sorted(func(p *models.Post) bool { return p.Name == name }), nil
}

func (m *PostRepository) Update(ctx context.Context, id bson.ObjectID, fields models.PostFields) (*models.Post, error) {
	return m.mutate(id, func(p *models.Post) { p.Apply(fields) })
}

func (m *PostRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.posts, id)
	m.Writes++
	return nil
}

func (m *PostRepository) ToggleLike(ctx context.Context, id bson.ObjectID, userID string) (*models.Post, error) {
	return m.mutate(id, func(p *models.Post) { p.ToggleLike(userID) })
}

func (m *PostRepository) AppendComment(ctx context.Context, id bson.ObjectID, value string) (*models.Post, error) {
	return m.mutate(id, func(p *models.Post) { p.AddComment(value) })
}

func (m *PostRepository) Ping(ctx context.Context) error {
	return m.Err
}

func (m *PostRepository) Close() error {
	return nil
}

func (m *PostRepository) mutate(id bson.ObjectID, fn func(*models.Post)) (*models.Post, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	post, exists := m.posts[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	fn(post)
	m.Writes++
	return clone(post), nil
}

func (m *PostRepository) sorted(keep func(*models.Post) bool) []*models.Post {
	posts := []*models.Post{}
	for _, post := range m.posts {
		if keep(post) {
			posts = append(posts, clone(post))
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].ID.Hex() > posts[j].ID.Hex()
	})
	return posts
}

func clone(p *models.Post) *models.Post {
	c := *p
	c.Tags = append([]string{}, p.Tags...)
	c.Likes = append([]string{}, p.Likes...)
	c.Comments = append([]string{}, p.Comments...)
	return &c
}
