package main

import (
	"encoding/json"
	"net/http"
	"time"
)

const defaultCategoryColor = "#808080"

func (a *App) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.Store.ListCategories(currentUser(r).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []*Category{}
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (a *App) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Name is required")
		return
	}
	if req.Color == "" {
		req.Color = defaultCategoryColor
	}

	category := &Category{
		ID:        newID(),
		Name:      req.Name,
		Color:     req.Color,
		OwnerID:   currentUser(r).ID,
		Count:     0,
		CreatedAt: time.Now().UTC(),
	}
	err := a.Store.CreateCategory(category)
	if err == ErrDuplicate {
		writeError(w, http.StatusConflict, CodeConflict, "Category with this name already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to create category")
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]interface{}{"category": category})
}
