package main

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrDuplicate is returned by Create* when a unique field collides.
var ErrDuplicate = errors.New("duplicate")

// Store is the persistence interface. Get* methods return (nil, nil) when no
// row matches. Todo mutations that touch a category's todo count perform both
// writes in one transaction.
type Store interface {
	Init() error
	// User operations
	CreateUser(email, passwordHash, name string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	GetUserByID(id string) (*User, error)
	// Todo operations
	CreateTodo(t *Todo) error
	GetTodo(id string) (*Todo, error)
	ListTodos(ownerID string, f TodoFilter) ([]*Todo, int, error)
	UpdateTodo(t *Todo, prevCategory *string) error
	DeleteTodo(t *Todo) error
	TodoStats(ownerID string, now time.Time) (*TodoStats, error)
	// Category operations
	ListCategories(ownerID string) ([]*Category, error)
	CreateCategory(c *Category) error
	// Token revocation (logout denylist)
	RevokeToken(jti string, expiresAt time.Time) error
	IsTokenRevoked(jti string) (bool, error)
	PruneRevokedTokens(now time.Time) error
}

// MemoryStore keeps everything in process. Used by tests and DB_ADAPTER=memory.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*User     // by id
	byEmail    map[string]string    // email -> user id
	todos      map[string]*Todo     // by id
	categories map[string]*Category // by id
	revoked    map[string]time.Time // jti -> token expiry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      map[string]*User{},
		byEmail:    map[string]string{},
		todos:      map[string]*Todo{},
		categories: map[string]*Category{},
		revoked:    map[string]time.Time{},
	}
}

func (m *MemoryStore) Init() error { return nil }

func (m *MemoryStore) CreateUser(email, passwordHash, name string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrDuplicate
	}
	now := time.Now().UTC()
	u := &User{
		ID:        newID(),
		Email:     email,
		Name:      name,
		Password:  passwordHash,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.users[u.ID] = u
	m.byEmail[email] = u.ID
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) GetUserByID(id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) CreateTodo(t *Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneTodo(t)
	m.todos[t.ID] = cp
	if t.Category != nil {
		m.adjustCategoryCount(t.OwnerID, *t.Category, 1)
	}
	return nil
}

func (m *MemoryStore) GetTodo(id string) (*Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.todos[id]
	if !ok {
		return nil, nil
	}
	return cloneTodo(t), nil
}

func (m *MemoryStore) ListTodos(ownerID string, f TodoFilter) ([]*Todo, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []*Todo
	for _, t := range m.todos {
		if t.OwnerID != ownerID || !matchesFilter(t, f) {
			continue
		}
		rows = append(rows, cloneTodo(t))
	}
	sortTodos(rows, f.Sort, f.Order)

	total := len(rows)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return rows[start:end], total, nil
}

func (m *MemoryStore) UpdateTodo(t *Todo, prevCategory *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.todos[t.ID]; !ok {
		return errors.New("todo vanished during update")
	}
	m.todos[t.ID] = cloneTodo(t)
	if !sameCategory(prevCategory, t.Category) {
		if prevCategory != nil {
			m.adjustCategoryCount(t.OwnerID, *prevCategory, -1)
		}
		if t.Category != nil {
			m.adjustCategoryCount(t.OwnerID, *t.Category, 1)
		}
	}
	return nil
}

func (m *MemoryStore) DeleteTodo(t *Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.todos, t.ID)
	if t.Category != nil {
		m.adjustCategoryCount(t.OwnerID, *t.Category, -1)
	}
	return nil
}

func (m *MemoryStore) TodoStats(ownerID string, now time.Time) (*TodoStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &TodoStats{}
	for _, t := range m.todos {
		if t.OwnerID != ownerID {
			continue
		}
		stats.Total++
		if t.Completed {
			stats.Completed++
			continue
		}
		stats.Pending++
		if t.DueDate != nil && t.DueDate.Before(now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

func (m *MemoryStore) ListCategories(ownerID string) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Category
	for _, c := range m.categories {
		if c.OwnerID != ownerID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) CreateCategory(c *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.OwnerID == c.OwnerID && existing.Name == c.Name {
			return ErrDuplicate
		}
	}
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *MemoryStore) RevokeToken(jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = expiresAt
	return nil
}

func (m *MemoryStore) IsTokenRevoked(jti string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *MemoryStore) PruneRevokedTokens(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for jti, exp := range m.revoked {
		if exp.Before(now) {
			delete(m.revoked, jti)
		}
	}
	return nil
}

// adjustCategoryCount is called with the write lock held.
func (m *MemoryStore) adjustCategoryCount(ownerID, name string, delta int) {
	for _, c := range m.categories {
		if c.OwnerID == ownerID && c.Name == name {
			c.Count += delta
			if c.Count < 0 {
				c.Count = 0
			}
			return
		}
	}
}

func cloneTodo(t *Todo) *Todo {
	cp := *t
	if t.Description != nil {
		v := *t.Description
		cp.Description = &v
	}
	if t.DueDate != nil {
		v := *t.DueDate
		cp.DueDate = &v
	}
	if t.Category != nil {
		v := *t.Category
		cp.Category = &v
	}
	if t.Tags != nil {
		cp.Tags = append([]string(nil), t.Tags...)
	}
	return &cp
}

func sameCategory(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func matchesFilter(t *Todo, f TodoFilter) bool {
	switch f.Status {
	case "active":
		if t.Completed {
			return false
		}
	case "completed":
		if !t.Completed {
			return false
		}
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Category != "" && (t.Category == nil || *t.Category != f.Category) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			(t.Description == nil || !strings.Contains(strings.ToLower(*t.Description), needle)) {
			return false
		}
	}
	return true
}

func sortTodos(rows []*Todo, key, order string) {
	desc := order == "desc"
	less := func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch key {
		case "due_date":
			at, bt := time.Time{}, time.Time{}
			if a.DueDate != nil {
				at = *a.DueDate
			}
			if b.DueDate != nil {
				bt = *b.DueDate
			}
			if !at.Equal(bt) {
				return at.Before(bt)
			}
		case "priority":
			if priorityRank(a.Priority) != priorityRank(b.Priority) {
				return priorityRank(a.Priority) < priorityRank(b.Priority)
			}
		case "title":
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		default: // created_at
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		// stable tiebreak so pagination never duplicates rows across pages
		return a.ID < b.ID
	}
	sort.Slice(rows, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

// lifecycle helpers
func (m *MemoryStore) close() error { return nil }
func (m *MemoryStore) ping() bool   { return true }
