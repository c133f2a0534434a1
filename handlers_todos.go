package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// parseTodoFilter validates list query parameters, applying the documented
// defaults: created_at desc, page 1, limit 10.
func parseTodoFilter(r *http.Request) (TodoFilter, *apiError) {
	q := r.URL.Query()
	f := TodoFilter{
		Sort:  "created_at",
		Order: "desc",
		Page:  1,
		Limit: 10,
	}

	switch status := q.Get("status"); status {
	case "", "all":
	case "active", "completed":
		f.Status = status
	default:
		return f, errInvalid("status must be all, active or completed")
	}

	if p := q.Get("priority"); p != "" {
		if !ValidPriority(p) {
			return f, errInvalid("priority must be one of low, medium, high, urgent")
		}
		f.Priority = p
	}
	f.Category = q.Get("category")
	f.Search = q.Get("search")

	switch sort := q.Get("sort"); sort {
	case "":
	case "created_at", "due_date", "priority", "title":
		f.Sort = sort
	default:
		return f, errInvalid("sort must be created_at, due_date, priority or title")
	}

	switch order := q.Get("order"); order {
	case "", "asc", "desc":
		if order != "" {
			f.Order = order
		}
	default:
		return f, errInvalid("order must be asc or desc")
	}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, errInvalid("page must be a positive integer")
		}
		f.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return f, errInvalid("limit must be between 1 and 100")
		}
		f.Limit = n
	}

	return f, nil
}

// getOwnedTodo looks a todo up by id and verifies ownership. A missing row and
// someone else's row are distinct failures (404 vs 403). Shared by the HTTP
// handlers and the chat agent tools.
func (a *App) getOwnedTodo(id, ownerID string) (*Todo, *apiError) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errInvalid("Invalid todo ID")
	}
	todo, err := a.Store.GetTodo(id)
	if err != nil {
		return nil, errInternal("Failed to load todo")
	}
	if todo == nil {
		return nil, errNotFound("Todo not found")
	}
	if todo.OwnerID != ownerID {
		return nil, errForbidden("Todo belongs to another user")
	}
	return todo, nil
}

func (a *App) HandleListTodos(w http.ResponseWriter, r *http.Request) {
	f, apiErr := parseTodoFilter(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	user := currentUser(r)
	todos, total, err := a.Store.ListTodos(user.ID, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to list todos")
		return
	}
	if todos == nil {
		todos = []*Todo{}
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"todos": todos,
		"pagination": Pagination{
			Page:  f.Page,
			Limit: f.Limit,
			Total: total,
			Pages: pageCount(total, f.Limit),
		},
	})
}

func (a *App) HandleGetTodo(w http.ResponseWriter, r *http.Request) {
	todo, apiErr := a.getOwnedTodo(mux.Vars(r)["id"], currentUser(r).ID)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"todo": todo})
}

type todoCreateRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Category    *string    `json:"category"`
	Tags        []string   `json:"tags"`
}

// buildTodo validates a create request and assembles the row. The owner is
// always the authenticated caller; a client-supplied owner field is not even
// representable in the request type.
func buildTodo(req todoCreateRequest, ownerID string) (*Todo, *apiError) {
	if req.Title == "" {
		return nil, errInvalid("Title is required")
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !ValidPriority(req.Priority) {
		return nil, errInvalid("priority must be one of low, medium, high, urgent")
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}
	now := time.Now().UTC()
	return &Todo{
		ID:          newID(),
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Category:    req.Category,
		Tags:        req.Tags,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (a *App) HandleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req todoCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body")
		return
	}

	todo, apiErr := buildTodo(req, currentUser(r).ID)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	if err := a.Store.CreateTodo(todo); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to create todo")
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]interface{}{"todo": todo})
}

func (a *App) HandleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	var patch TodoPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body")
		return
	}

	todo, apiErr := a.getOwnedTodo(mux.Vars(r)["id"], currentUser(r).ID)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	prevCategory := todo.Category
	if apiErr := patch.Apply(todo); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	todo.UpdatedAt = time.Now().UTC()
	if err := a.Store.UpdateTodo(todo, prevCategory); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to update todo")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"todo": todo})
}

func (a *App) HandleToggleTodo(w http.ResponseWriter, r *http.Request) {
	todo, apiErr := a.getOwnedTodo(mux.Vars(r)["id"], currentUser(r).ID)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	todo.Completed = !todo.Completed
	todo.UpdatedAt = time.Now().UTC()
	if err := a.Store.UpdateTodo(todo, todo.Category); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to update todo")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"todo": todo})
}

func (a *App) HandleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	todo, apiErr := a.getOwnedTodo(mux.Vars(r)["id"], currentUser(r).ID)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	if err := a.Store.DeleteTodo(todo); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to delete todo")
		return
	}
	writeMessage(w, http.StatusOK, "Todo deleted successfully")
}

func (a *App) HandleTodoStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Store.TodoStats(currentUser(r).ID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to compute stats")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"stats": stats})
}
