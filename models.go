package main

import (
	"time"

	"github.com/google/uuid"
)

func newID() string { return uuid.NewString() }

// Priority levels a todo may carry.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidPriority reports whether p is one of the enumerated priority levels.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// priorityRank orders priorities for sorting: low < medium < high < urgent.
func priorityRank(p string) int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return -1
}

// User represents a registered account. Password holds the bcrypt hash and is
// never serialized.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Password  string    `json:"-"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Todo is a single task owned by exactly one user.
type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Category    *string    `json:"category"`
	Tags        []string   `json:"tags"`
	OwnerID     string     `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Category is a named label owned by one user. Count tracks how many of the
// owner's todos currently carry the category's name.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	OwnerID   string    `json:"owner_id"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// TodoStats summarizes a user's todos. Overdue counts incomplete todos whose
// due date has passed.
type TodoStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Overdue   int `json:"overdue"`
}

// TodoFilter holds the validated list parameters for a single user's todos.
type TodoFilter struct {
	Status   string // "", "active" or "completed"
	Priority string
	Category string
	Search   string
	Sort     string // created_at, due_date, priority, title
	Order    string // asc or desc
	Page     int
	Limit    int
}

// Offset returns the row offset for the filter's page.
func (f TodoFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination is the list-response paging metadata.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func pageCount(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
