package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoryCRUD(t *testing.T) {
	app := newTestApp()
	userID, token := registerUser(t, app, "a@x.com", "pw", "A")

	rec := doRequest(t, app, "POST", "/categories", token, map[string]string{
		"name": "work", "color": "#ff0000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	cat := dataField(t, rec)["category"].(map[string]interface{})
	require.Equal(t, "work", cat["name"])
	require.Equal(t, "#ff0000", cat["color"])
	require.Equal(t, userID, cat["owner_id"])
	require.EqualValues(t, 0, cat["count"])

	// color defaults when omitted
	rec = doRequest(t, app, "POST", "/categories", token, map[string]string{"name": "home"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, defaultCategoryColor, dataField(t, rec)["category"].(map[string]interface{})["color"])

	// name is required
	rec = doRequest(t, app, "POST", "/categories", token, map[string]string{"color": "#00ff00"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// duplicate name for the same owner conflicts
	rec = doRequest(t, app, "POST", "/categories", token, map[string]string{"name": "work"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, CodeConflict, errorCode(t, rec))

	rec = doRequest(t, app, "GET", "/categories", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, dataField(t, rec)["categories"].([]interface{}), 2)
}

func TestCategoryNamesScopedPerUser(t *testing.T) {
	app := newTestApp()
	_, aliceToken := registerUser(t, app, "a@x.com", "pw", "A")
	_, bobToken := registerUser(t, app, "b@x.com", "pw", "B")

	rec := doRequest(t, app, "POST", "/categories", aliceToken, map[string]string{"name": "work"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// the same name is free for another user
	rec = doRequest(t, app, "POST", "/categories", bobToken, map[string]string{"name": "work"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// and listing never shows foreign categories
	rec = doRequest(t, app, "GET", "/categories", bobToken, nil)
	require.Len(t, dataField(t, rec)["categories"].([]interface{}), 1)
}

func TestCategoryCountTracksTodos(t *testing.T) {
	app := newTestApp()
	_, token := registerUser(t, app, "a@x.com", "pw", "A")

	rec := doRequest(t, app, "POST", "/categories", token, map[string]string{"name": "work"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, app, "POST", "/categories", token, map[string]string{"name": "home"})
	require.Equal(t, http.StatusCreated, rec.Code)

	count := func(name string) int {
		rec := doRequest(t, app, "GET", "/categories", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		for _, raw := range dataField(t, rec)["categories"].([]interface{}) {
			c := raw.(map[string]interface{})
			if c["name"] == name {
				return int(c["count"].(float64))
			}
		}
		t.Fatalf("category %q not listed", name)
		return -1
	}

	a := createTodo(t, app, token, map[string]string{"title": "one", "category": "work"})
	createTodo(t, app, token, map[string]string{"title": "two", "category": "work"})
	require.Equal(t, 2, count("work"))
	require.Equal(t, 0, count("home"))

	// moving a todo between categories shifts the counts
	rec = doRequest(t, app, "PUT", "/todos/"+a["id"].(string), token, map[string]string{"category": "home"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, count("work"))
	require.Equal(t, 1, count("home"))

	// an update that keeps the category leaves the counts alone
	rec = doRequest(t, app, "PUT", "/todos/"+a["id"].(string), token, map[string]string{"title": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, count("home"))

	rec = doRequest(t, app, "DELETE", "/todos/"+a["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, count("home"))
	require.Equal(t, 1, count("work"))
}
