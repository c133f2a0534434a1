package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "todos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.close() })
	return store
}

func TestSQLiteUsers(t *testing.T) {
	store := newTestSQLiteStore(t)

	u, err := store.CreateUser("a@x.com", "hash", "A")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.True(t, u.Active)

	_, err = store.CreateUser("a@x.com", "other", "B")
	require.ErrorIs(t, err, ErrDuplicate)

	got, err := store.GetUserByEmail("a@x.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "hash", got.Password)

	got, err = store.GetUserByID(u.ID)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", got.Email)

	got, err = store.GetUserByEmail("missing@x.com")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSQLiteTodoRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	u, err := store.CreateUser("a@x.com", "hash", "A")
	require.NoError(t, err)

	desc := "with everything set"
	cat := "work"
	due := time.Date(2026, 9, 15, 9, 30, 0, 0, time.UTC)
	todo, apiErr := buildTodo(todoCreateRequest{
		Title:       "full row",
		Description: &desc,
		Priority:    PriorityHigh,
		DueDate:     &due,
		Category:    &cat,
		Tags:        []string{"one", "two"},
	}, u.ID)
	require.Nil(t, apiErr)
	require.NoError(t, store.CreateTodo(todo))

	got, err := store.GetTodo(todo.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "full row", got.Title)
	require.Equal(t, desc, *got.Description)
	require.Equal(t, PriorityHigh, got.Priority)
	require.True(t, due.Equal(*got.DueDate))
	require.Equal(t, cat, *got.Category)
	require.Equal(t, []string{"one", "two"}, got.Tags)
	require.Equal(t, u.ID, got.OwnerID)

	// nullable fields survive a clear
	got.Description = nil
	got.DueDate = nil
	got.Tags = []string{}
	require.NoError(t, store.UpdateTodo(got, got.Category))

	got, err = store.GetTodo(todo.ID)
	require.NoError(t, err)
	require.Nil(t, got.Description)
	require.Nil(t, got.DueDate)
	require.Empty(t, got.Tags)

	require.NoError(t, store.DeleteTodo(got))
	gone, err := store.GetTodo(todo.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestSQLiteListFiltersAndPaging(t *testing.T) {
	store := newTestSQLiteStore(t)
	u, err := store.CreateUser("a@x.com", "hash", "A")
	require.NoError(t, err)
	other, err := store.CreateUser("b@x.com", "hash", "B")
	require.NoError(t, err)

	mk := func(ownerID, title, priority string, completed bool) *Todo {
		todo, apiErr := buildTodo(todoCreateRequest{Title: title, Priority: priority}, ownerID)
		require.Nil(t, apiErr)
		todo.Completed = completed
		require.NoError(t, store.CreateTodo(todo))
		return todo
	}
	mk(u.ID, "alpha", PriorityLow, false)
	mk(u.ID, "beta", PriorityUrgent, true)
	mk(u.ID, "gamma review", PriorityHigh, false)
	mk(other.ID, "not mine", PriorityLow, false)

	todos, total, err := store.ListTodos(u.ID, TodoFilter{Sort: "title", Order: "asc", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, "alpha", todos[0].Title)

	_, total, err = store.ListTodos(u.ID, TodoFilter{Status: "completed", Sort: "created_at", Order: "desc", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	todos, _, err = store.ListTodos(u.ID, TodoFilter{Sort: "priority", Order: "desc", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, PriorityUrgent, todos[0].Priority)

	todos, total, err = store.ListTodos(u.ID, TodoFilter{Search: "REVIEW", Sort: "created_at", Order: "desc", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "gamma review", todos[0].Title)

	// second page of a 3-row set with limit 2
	todos, total, err = store.ListTodos(u.ID, TodoFilter{Sort: "title", Order: "asc", Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, todos, 1)
}

func TestSQLiteCategoryCounts(t *testing.T) {
	store := newTestSQLiteStore(t)
	u, err := store.CreateUser("a@x.com", "hash", "A")
	require.NoError(t, err)

	require.NoError(t, store.CreateCategory(&Category{
		ID: newID(), Name: "work", Color: "#fff", OwnerID: u.ID, CreatedAt: time.Now().UTC(),
	}))
	err = store.CreateCategory(&Category{
		ID: newID(), Name: "work", Color: "#000", OwnerID: u.ID, CreatedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrDuplicate)

	cat := "work"
	todo, apiErr := buildTodo(todoCreateRequest{Title: "x", Category: &cat}, u.ID)
	require.Nil(t, apiErr)
	require.NoError(t, store.CreateTodo(todo))

	cats, err := store.ListCategories(u.ID)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.Equal(t, 1, cats[0].Count)

	prev := todo.Category
	todo.Category = nil
	require.NoError(t, store.UpdateTodo(todo, prev))

	cats, err = store.ListCategories(u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, cats[0].Count)
}

func TestSQLiteStats(t *testing.T) {
	store := newTestSQLiteStore(t)
	u, err := store.CreateUser("a@x.com", "hash", "A")
	require.NoError(t, err)

	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	open, _ := buildTodo(todoCreateRequest{Title: "open"}, u.ID)
	require.NoError(t, store.CreateTodo(open))

	late, _ := buildTodo(todoCreateRequest{Title: "late", DueDate: &past}, u.ID)
	require.NoError(t, store.CreateTodo(late))

	done, _ := buildTodo(todoCreateRequest{Title: "done"}, u.ID)
	done.Completed = true
	require.NoError(t, store.CreateTodo(done))

	stats, err := store.TodoStats(u.ID, now)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 1, stats.Completed)
	require.Equal(t, 2, stats.Pending)
	require.Equal(t, 1, stats.Overdue)
}

func TestSQLiteTokenRevocation(t *testing.T) {
	store := newTestSQLiteStore(t)

	revoked, err := store.IsTokenRevoked("jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, store.RevokeToken("jti-1", time.Now().Add(time.Hour)))
	revoked, err = store.IsTokenRevoked("jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// pruning drops only entries whose token has already expired
	require.NoError(t, store.RevokeToken("jti-2", time.Now().Add(-time.Hour)))
	require.NoError(t, store.PruneRevokedTokens(time.Now()))

	revoked, err = store.IsTokenRevoked("jti-1")
	require.NoError(t, err)
	require.True(t, revoked)
	revoked, err = store.IsTokenRevoked("jti-2")
	require.NoError(t, err)
	require.False(t, revoked)
}
