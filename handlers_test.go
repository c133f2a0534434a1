package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestApp() *App {
	return &App{
		Store:  NewMemoryStore(),
		Tokens: NewTokenService("test-secret", 30*time.Minute),
		Log:    zerolog.Nop(),
	}
}

// doRequest runs one request through the full router, so middleware is
// exercised exactly as in production.
func doRequest(t *testing.T, app *App, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func dataField(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"], "body: %s", rec.Body.String())
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "body: %s", rec.Body.String())
	return data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "body: %s", rec.Body.String())
	code, _ := e["code"].(string)
	return code
}

// registerUser registers a fresh user and returns its id and token.
func registerUser(t *testing.T, app *App, email, password, name string) (string, string) {
	t.Helper()
	rec := doRequest(t, app, "POST", "/auth/register", "", map[string]string{
		"email": email, "password": password, "name": name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := dataField(t, rec)
	user := data["user"].(map[string]interface{})
	return user["id"].(string), data["token"].(string)
}

func TestRegisterLoginFlow(t *testing.T) {
	app := newTestApp()

	userID, token := registerUser(t, app, "a@x.com", "pw", "A")
	require.NotEmpty(t, userID)
	require.NotEmpty(t, token)

	// duplicate email conflicts without touching the first record
	rec := doRequest(t, app, "POST", "/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "other", "name": "Imposter",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, CodeConflict, errorCode(t, rec))

	rec = doRequest(t, app, "POST", "/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "pw",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataField(t, rec)
	require.Equal(t, userID, data["user"].(map[string]interface{})["id"])
	require.NotEmpty(t, data["token"])

	// constant failure shape for unknown email and wrong password
	for _, creds := range []map[string]string{
		{"email": "nobody@x.com", "password": "pw"},
		{"email": "a@x.com", "password": "wrong"},
	} {
		rec = doRequest(t, app, "POST", "/auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeUnauthenticated, errorCode(t, rec))
	}
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp()

	for _, body := range []map[string]string{
		{"password": "pw", "name": "A"},
		{"email": "a@x.com", "name": "A"},
		{"email": "a@x.com", "password": "pw"},
		{"email": "not-an-email", "password": "pw", "name": "A"},
	} {
		rec := doRequest(t, app, "POST", "/auth/register", "", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body: %v", body)
	}
}

func TestPasswordHashNeverSerialized(t *testing.T) {
	app := newTestApp()
	_, token := registerUser(t, app, "a@x.com", "pw", "A")

	rec := doRequest(t, app, "GET", "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "password")

	user := dataField(t, rec)["user"].(map[string]interface{})
	require.Equal(t, "a@x.com", user["email"])
	require.Equal(t, "A", user["name"])
}

func TestAuthRequired(t *testing.T) {
	app := newTestApp()

	paths := []struct{ method, path string }{
		{"GET", "/todos"},
		{"POST", "/todos"},
		{"GET", "/todos/stats"},
		{"GET", "/categories"},
		{"POST", "/categories"},
		{"GET", "/auth/me"},
		{"POST", "/chat"},
	}
	for _, p := range paths {
		rec := doRequest(t, app, p.method, p.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
		require.Equal(t, CodeUnauthenticated, errorCode(t, rec))
	}

	// garbage token
	rec := doRequest(t, app, "GET", "/todos", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newTestApp()
	_, token := registerUser(t, app, "a@x.com", "pw", "A")

	rec := doRequest(t, app, "GET", "/todos", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, app, "POST", "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Logged out")

	// the denylisted token no longer works
	rec = doRequest(t, app, "GET", "/todos", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// logout without a token is still a success
	rec = doRequest(t, app, "POST", "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEndToEndTodoLifecycle(t *testing.T) {
	app := newTestApp()
	userID, token := registerUser(t, app, "a@x.com", "pw", "A")

	rec := doRequest(t, app, "POST", "/todos", token, map[string]string{"title": "Buy milk"})
	require.Equal(t, http.StatusCreated, rec.Code)
	todo := dataField(t, rec)["todo"].(map[string]interface{})
	require.Equal(t, "Buy milk", todo["title"])
	require.Equal(t, userID, todo["owner_id"])
	require.Equal(t, false, todo["completed"])
	require.Equal(t, PriorityMedium, todo["priority"])
	id := todo["id"].(string)

	rec = doRequest(t, app, "GET", "/todos", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataField(t, rec)
	todos := data["todos"].([]interface{})
	require.Len(t, todos, 1)
	require.Equal(t, id, todos[0].(map[string]interface{})["id"])

	rec = doRequest(t, app, "PATCH", fmt.Sprintf("/todos/%s/toggle", id), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, dataField(t, rec)["todo"].(map[string]interface{})["completed"])

	rec = doRequest(t, app, "DELETE", "/todos/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, app, "GET", "/todos/"+id, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, CodeNotFound, errorCode(t, rec))
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp()

	rec := doRequest(t, app, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, app, "GET", "/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
