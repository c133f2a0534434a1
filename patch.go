package main

import (
	"encoding/json"
	"time"
)

// Optional is a tri-state JSON field: absent (Set=false), explicit null
// (Set=true, Valid=false), or a value (Set=true, Valid=true). It keeps
// "don't change" distinct from "set to empty" in partial updates.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// UnmarshalJSON is only invoked for keys present in the payload, which is what
// flips Set.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Valid = false
		var zero T
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// TodoPatch is the partial-update payload for a todo. Absent fields leave the
// stored value unchanged; null clears the nullable fields and is rejected for
// the required ones.
type TodoPatch struct {
	Title       Optional[string]    `json:"title"`
	Description Optional[string]    `json:"description"`
	Completed   Optional[bool]      `json:"completed"`
	Priority    Optional[string]    `json:"priority"`
	DueDate     Optional[time.Time] `json:"due_date"`
	Category    Optional[string]    `json:"category"`
	Tags        Optional[[]string]  `json:"tags"`
}

// Apply folds the patch into t. It returns an apiError when a required field
// is nulled or an enum value is out of range. The caller refreshes updated_at.
func (p TodoPatch) Apply(t *Todo) *apiError {
	if p.Title.Set {
		if !p.Title.Valid || p.Title.Value == "" {
			return errInvalid("title cannot be empty")
		}
		t.Title = p.Title.Value
	}
	if p.Description.Set {
		if p.Description.Valid {
			v := p.Description.Value
			t.Description = &v
		} else {
			t.Description = nil
		}
	}
	if p.Completed.Set {
		if !p.Completed.Valid {
			return errInvalid("completed cannot be null")
		}
		t.Completed = p.Completed.Value
	}
	if p.Priority.Set {
		if !p.Priority.Valid || !ValidPriority(p.Priority.Value) {
			return errInvalid("priority must be one of low, medium, high, urgent")
		}
		t.Priority = p.Priority.Value
	}
	if p.DueDate.Set {
		if p.DueDate.Valid {
			v := p.DueDate.Value
			t.DueDate = &v
		} else {
			t.DueDate = nil
		}
	}
	if p.Category.Set {
		if p.Category.Valid && p.Category.Value != "" {
			v := p.Category.Value
			t.Category = &v
		} else {
			t.Category = nil
		}
	}
	if p.Tags.Set {
		if p.Tags.Valid {
			t.Tags = p.Tags.Value
		} else {
			t.Tags = nil
		}
	}
	return nil
}
