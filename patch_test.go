package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func decodePatch(t *testing.T, raw string) TodoPatch {
	t.Helper()
	var p TodoPatch
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestOptionalTriState(t *testing.T) {
	p := decodePatch(t, `{}`)
	require.False(t, p.Title.Set)
	require.False(t, p.Description.Set)

	p = decodePatch(t, `{"description":null}`)
	require.True(t, p.Description.Set)
	require.False(t, p.Description.Valid)

	p = decodePatch(t, `{"description":"x"}`)
	require.True(t, p.Description.Set)
	require.True(t, p.Description.Valid)
	require.Equal(t, "x", p.Description.Value)
}

func sampleTodo() *Todo {
	desc := "original"
	cat := "work"
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Todo{
		ID:          newID(),
		Title:       "original title",
		Description: &desc,
		Completed:   false,
		Priority:    PriorityMedium,
		DueDate:     &due,
		Category:    &cat,
		Tags:        []string{"a"},
		OwnerID:     newID(),
	}
}

func TestPatchApplyAbsentFieldsUntouched(t *testing.T) {
	todo := sampleTodo()
	want := *todo

	require.Nil(t, decodePatch(t, `{}`).Apply(todo))
	require.Equal(t, want.Title, todo.Title)
	require.Equal(t, *want.Description, *todo.Description)
	require.Equal(t, want.Priority, todo.Priority)
	require.Equal(t, *want.Category, *todo.Category)
}

func TestPatchApplyNullClearsNullable(t *testing.T) {
	todo := sampleTodo()
	p := decodePatch(t, `{"description":null,"due_date":null,"category":null,"tags":null}`)
	require.Nil(t, p.Apply(todo))
	require.Nil(t, todo.Description)
	require.Nil(t, todo.DueDate)
	require.Nil(t, todo.Category)
	require.Nil(t, todo.Tags)
	// required fields survive
	require.Equal(t, "original title", todo.Title)
	require.Equal(t, PriorityMedium, todo.Priority)
}

func TestPatchApplyRejectsInvalid(t *testing.T) {
	cases := []string{
		`{"title":null}`,
		`{"title":""}`,
		`{"completed":null}`,
		`{"priority":null}`,
		`{"priority":"whenever"}`,
	}
	for _, raw := range cases {
		todo := sampleTodo()
		apiErr := decodePatch(t, raw).Apply(todo)
		require.NotNil(t, apiErr, raw)
		require.Equal(t, CodeInvalidInput, apiErr.Code, raw)
	}
}

func TestPatchApplySetsValues(t *testing.T) {
	todo := sampleTodo()
	p := decodePatch(t, `{"title":"new","completed":true,"priority":"urgent","category":"home","tags":["x","y"]}`)
	require.Nil(t, p.Apply(todo))
	require.Equal(t, "new", todo.Title)
	require.True(t, todo.Completed)
	require.Equal(t, PriorityUrgent, todo.Priority)
	require.Equal(t, "home", *todo.Category)
	require.Equal(t, []string{"x", "y"}, todo.Tags)
}
