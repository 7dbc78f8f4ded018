package post

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for post operations.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrPostDeleted  = errors.New("post has been deleted")
)

// PriorityFunc computes the priority score for a post at write time.
// The repository calls it under its own lock so the stored priority field
// stays consistent with the post's counters.
type PriorityFunc func(p *Post) int

// Repository defines the interface for post data operations.
// Persistence itself is an external collaborator; this interface is the seam
// the ranking engine consumes candidates through.
type Repository interface {
	// Create inserts a new post with a generated UUID and computed priority.
	Create(post *Post) error

	// Update updates an existing post's mutable fields and recomputes priority.
	Update(post *Post) error

	// Delete soft-deletes a post by setting deleted_at.
	Delete(id string) error

	// GetByID retrieves a post by its UUID, excluding soft-deleted posts.
	GetByID(id string) (*Post, error)

	// IncrementViews bumps the view counter and refreshes priority.
	IncrementViews(id string) (*Post, error)

	// Report bumps the report counter and refreshes priority.
	Report(id string) (*Post, error)

	// List returns copies of all non-deleted posts. Filtering, sorting and
	// pagination are the feed assembler's responsibility.
	List() ([]*Post, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	posts    map[string]*Post
	priority PriorityFunc
}

// NewInMemoryRepository creates a new in-memory post repository.
// priority may be nil, in which case the stored priority field is left as-is.
func NewInMemoryRepository(priority PriorityFunc) *InMemoryRepository {
	return &InMemoryRepository{
		posts:    make(map[string]*Post),
		priority: priority,
	}
}

// refreshPriority recomputes the priority field. Caller must hold the lock.
func (r *InMemoryRepository) refreshPriority(p *Post) {
	if r.priority != nil {
		p.Priority = r.priority(p)
	}
}

// Create inserts a new post with a generated UUID.
func (r *InMemoryRepository) Create(post *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	post.ID = uuid.New().String()
	if post.Status == "" {
		post.Status = StatusActive
	}
	post.CreatedAt = now
	post.UpdatedAt = now
	r.refreshPriority(post)

	postCopy := *post
	r.posts[post.ID] = &postCopy

	return nil
}

// Update updates an existing post's mutable fields.
func (r *InMemoryRepository) Update(post *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.posts[post.ID]
	if !ok {
		return ErrPostNotFound
	}

	// Don't allow updating deleted posts
	if existing.DeletedAt != nil {
		return ErrPostDeleted
	}

	existing.Title = post.Title
	existing.Description = post.Description
	existing.Category = post.Category
	existing.Urgency = post.Urgency
	existing.City = post.City
	existing.Status = post.Status
	existing.Coordinates = post.Coordinates
	existing.UpdatedAt = time.Now()
	r.refreshPriority(existing)

	// Reflect server-owned fields back to the caller
	post.Priority = existing.Priority
	post.UpdatedAt = existing.UpdatedAt

	return nil
}

// Delete soft-deletes a post by setting deleted_at timestamp.
func (r *InMemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}

	// Already deleted - treat as not found for idempotency
	if post.DeletedAt != nil {
		return ErrPostNotFound
	}

	now := time.Now()
	post.DeletedAt = &now

	return nil
}

// GetByID retrieves a post by its UUID, excluding soft-deleted posts.
func (r *InMemoryRepository) GetByID(id string) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok || post.DeletedAt != nil {
		return nil, ErrPostNotFound
	}

	postCopy := *post
	return &postCopy, nil
}

// IncrementViews bumps the view counter and refreshes priority.
func (r *InMemoryRepository) IncrementViews(id string) (*Post, error) {
	return r.bump(id, func(p *Post) { p.Views++ })
}

// Report bumps the report counter and refreshes priority.
func (r *InMemoryRepository) Report(id string) (*Post, error) {
	return r.bump(id, func(p *Post) { p.Reported++ })
}

// bump applies a counter mutation and recomputes priority atomically.
func (r *InMemoryRepository) bump(id string, mutate func(*Post)) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok || post.DeletedAt != nil {
		return nil, ErrPostNotFound
	}

	mutate(post)
	r.refreshPriority(post)

	postCopy := *post
	return &postCopy, nil
}

// List returns copies of all non-deleted posts.
func (r *InMemoryRepository) List() ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*Post, 0, len(r.posts))
	for _, post := range r.posts {
		if post.DeletedAt != nil {
			continue
		}
		postCopy := *post
		results = append(results, &postCopy)
	}

	return results, nil
}
