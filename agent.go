package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const agentSystemPrompt = `You are a helpful assistant that manages todo lists through natural language.
You can help users create, update, delete and view their todo items.
You have access to specific tools for each operation.

When a user gives you a command:
1. Determine the intent (create, update, delete, view, etc.)
2. Extract relevant parameters (title, description, priority, due date, etc.)
3. Call the appropriate tool with the extracted parameters
4. Respond to the user with the result

Be helpful and conversational in your responses.`

const agentApology = "Sorry, I encountered an error processing your request. Please try again."

// Agent translates free-text commands into todo operations via the completion
// service's tool-calling mechanism. Every tool executes as the verified caller
// passed to Process; there is no fallback identity.
type Agent struct {
	client CompletionClient
	model  string
	app    *App
}

func NewAgent(client CompletionClient, model string, app *App) *Agent {
	return &Agent{client: client, model: model, app: app}
}

func prioritySchema() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Priority level (low, medium, high, urgent)",
	}
}

func todoTools() []Tool {
	fn := func(name, desc string, props map[string]any, required ...string) Tool {
		if required == nil {
			required = []string{}
		}
		return Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        name,
				Description: desc,
				Parameters: map[string]any{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		}
	}
	return []Tool{
		fn("create_todo", "Create a new todo item", map[string]any{
			"title":       map[string]any{"type": "string", "description": "The title of the todo"},
			"description": map[string]any{"type": "string", "description": "Optional description"},
			"priority":    prioritySchema(),
			"due_date":    map[string]any{"type": "string", "description": "Optional due date in ISO format"},
			"category":    map[string]any{"type": "string", "description": "Optional category"},
			"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Optional tags"},
		}, "title"),
		fn("get_todos", "Retrieve the user's todo items with optional filters", map[string]any{
			"status_filter":   map[string]any{"type": "string", "description": "Filter by status (all, active, completed)"},
			"priority_filter": prioritySchema(),
			"category_filter": map[string]any{"type": "string", "description": "Filter by category"},
			"search":          map[string]any{"type": "string", "description": "Free-text search over title and description"},
			"limit":           map[string]any{"type": "integer", "description": "Maximum number of results"},
			"page":            map[string]any{"type": "integer", "description": "Page number for pagination"},
		}),
		fn("update_todo", "Update an existing todo item", map[string]any{
			"todo_id":     map[string]any{"type": "string", "description": "ID of the todo to update"},
			"title":       map[string]any{"type": "string", "description": "New title (optional)"},
			"description": map[string]any{"type": "string", "description": "New description (optional)"},
			"completed":   map[string]any{"type": "boolean", "description": "New completion status (optional)"},
			"priority":    prioritySchema(),
			"due_date":    map[string]any{"type": "string", "description": "New due date (optional)"},
			"category":    map[string]any{"type": "string", "description": "New category (optional)"},
		}, "todo_id"),
		fn("delete_todo", "Delete a todo item", map[string]any{
			"todo_id": map[string]any{"type": "string", "description": "ID of the todo to delete"},
		}, "todo_id"),
		fn("toggle_todo_completion", "Toggle the completion status of a todo item", map[string]any{
			"todo_id": map[string]any{"type": "string", "description": "ID of the todo to toggle"},
		}, "todo_id"),
		fn("get_todo_stats", "Get the user's todo statistics", map[string]any{}),
		fn("get_user_profile", "Get the user's profile information", map[string]any{}),
	}
}

// Process runs a single natural-language turn for user. Failures in the
// completion round trip or tool dispatch never propagate; the caller always
// gets a text reply.
func (ag *Agent) Process(ctx context.Context, user *User, message string) string {
	messages := []Message{
		{Role: "system", Content: agentSystemPrompt},
		{Role: "user", Content: message},
	}

	resp, err := ag.client.CreateChatCompletion(ctx, ChatRequest{
		Model:       ag.model,
		Messages:    messages,
		Temperature: 0.7,
		Tools:       todoTools(),
		ToolChoice:  "auto",
	})
	if err != nil {
		ag.app.Log.Error().Err(err).Msg("agent completion")
		return agentApology
	}

	reply := resp.Choices[0].Message
	if len(reply.ToolCalls) == 0 {
		return reply.Content
	}

	messages = append(messages, reply)
	for _, call := range reply.ToolCalls {
		result := ag.dispatch(user, call.Function)
		content, err := json.Marshal(result)
		if err != nil {
			ag.app.Log.Error().Err(err).Str("tool", call.Function.Name).Msg("agent tool result")
			return agentApology
		}
		messages = append(messages, Message{
			Role:       "tool",
			ToolCallID: call.ID,
			Name:       call.Function.Name,
			Content:    string(content),
		})
	}

	final, err := ag.client.CreateChatCompletion(ctx, ChatRequest{
		Model:       ag.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		ag.app.Log.Error().Err(err).Msg("agent followup completion")
		return agentApology
	}
	return final.Choices[0].Message.Content
}

func toolFailure(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

// dispatch executes one tool call on behalf of user and returns a JSON-ready
// result for the followup completion.
func (ag *Agent) dispatch(user *User, call FunctionCall) map[string]any {
	switch call.Name {
	case "create_todo":
		return ag.createTodo(user, call.Arguments)
	case "get_todos":
		return ag.getTodos(user, call.Arguments)
	case "update_todo":
		return ag.updateTodo(user, call.Arguments)
	case "delete_todo":
		return ag.deleteTodo(user, call.Arguments)
	case "toggle_todo_completion":
		return ag.toggleTodo(user, call.Arguments)
	case "get_todo_stats":
		stats, err := ag.app.Store.TodoStats(user.ID, time.Now().UTC())
		if err != nil {
			return toolFailure("failed to compute stats")
		}
		return map[string]any{"success": true, "stats": stats}
	case "get_user_profile":
		return map[string]any{"success": true, "user": user}
	default:
		return toolFailure("unknown tool: " + call.Name)
	}
}

func (ag *Agent) createTodo(user *User, args string) map[string]any {
	var req struct {
		Title       string   `json:"title"`
		Description *string  `json:"description"`
		Priority    string   `json:"priority"`
		DueDate     string   `json:"due_date"`
		Category    *string  `json:"category"`
		Tags        []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return toolFailure("invalid arguments")
	}

	create := todoCreateRequest{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		Tags:        req.Tags,
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			return toolFailure("due_date must be in ISO format")
		}
		create.DueDate = &due
	}

	todo, apiErr := buildTodo(create, user.ID)
	if apiErr != nil {
		return toolFailure(apiErr.Message)
	}
	if err := ag.app.Store.CreateTodo(todo); err != nil {
		return toolFailure("failed to create todo")
	}
	return map[string]any{"success": true, "todo": todo}
}

func (ag *Agent) getTodos(user *User, args string) map[string]any {
	var req struct {
		StatusFilter   string `json:"status_filter"`
		PriorityFilter string `json:"priority_filter"`
		CategoryFilter string `json:"category_filter"`
		Search         string `json:"search"`
		Limit          int    `json:"limit"`
		Page           int    `json:"page"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return toolFailure("invalid arguments")
	}

	f := TodoFilter{
		Search: req.Search,
		Sort:   "created_at",
		Order:  "desc",
		Page:   1,
		Limit:  10,
	}
	switch req.StatusFilter {
	case "", "all":
	case "active", "completed":
		f.Status = req.StatusFilter
	default:
		return toolFailure("status_filter must be all, active or completed")
	}
	if req.PriorityFilter != "" {
		if !ValidPriority(req.PriorityFilter) {
			return toolFailure("priority_filter must be one of low, medium, high, urgent")
		}
		f.Priority = req.PriorityFilter
	}
	f.Category = req.CategoryFilter
	if req.Limit > 0 && req.Limit <= 100 {
		f.Limit = req.Limit
	}
	if req.Page > 0 {
		f.Page = req.Page
	}

	todos, total, err := ag.app.Store.ListTodos(user.ID, f)
	if err != nil {
		return toolFailure("failed to list todos")
	}
	if todos == nil {
		todos = []*Todo{}
	}
	return map[string]any{"success": true, "todos": todos, "total": total}
}

func (ag *Agent) updateTodo(user *User, args string) map[string]any {
	var req struct {
		TodoID string `json:"todo_id"`
		TodoPatch
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return toolFailure("invalid arguments")
	}

	todo, apiErr := ag.app.getOwnedTodo(req.TodoID, user.ID)
	if apiErr != nil {
		return toolFailure(apiErr.Message)
	}
	prevCategory := todo.Category
	if apiErr := req.TodoPatch.Apply(todo); apiErr != nil {
		return toolFailure(apiErr.Message)
	}
	todo.UpdatedAt = time.Now().UTC()
	if err := ag.app.Store.UpdateTodo(todo, prevCategory); err != nil {
		return toolFailure("failed to update todo")
	}
	return map[string]any{"success": true, "todo": todo}
}

func (ag *Agent) deleteTodo(user *User, args string) map[string]any {
	var req struct {
		TodoID string `json:"todo_id"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return toolFailure("invalid arguments")
	}
	todo, apiErr := ag.app.getOwnedTodo(req.TodoID, user.ID)
	if apiErr != nil {
		return toolFailure(apiErr.Message)
	}
	if err := ag.app.Store.DeleteTodo(todo); err != nil {
		return toolFailure("failed to delete todo")
	}
	return map[string]any{"success": true}
}

func (ag *Agent) toggleTodo(user *User, args string) map[string]any {
	var req struct {
		TodoID string `json:"todo_id"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return toolFailure("invalid arguments")
	}
	todo, apiErr := ag.app.getOwnedTodo(req.TodoID, user.ID)
	if apiErr != nil {
		return toolFailure(apiErr.Message)
	}
	todo.Completed = !todo.Completed
	todo.UpdatedAt = time.Now().UTC()
	if err := ag.app.Store.UpdateTodo(todo, todo.Category); err != nil {
		return toolFailure("failed to update todo")
	}
	return map[string]any{"success": true, "todo": todo}
}

// HandleChat runs one agent turn for the authenticated caller.
func (a *App) HandleChat(w http.ResponseWriter, r *http.Request) {
	if a.Agent == nil {
		writeError(w, http.StatusServiceUnavailable, "AGENT_DISABLED", "Chat agent is not configured")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Message is required")
		return
	}

	reply := a.Agent.Process(r.Context(), currentUser(r), req.Message)
	writeSuccess(w, http.StatusOK, map[string]interface{}{"reply": reply})
}
