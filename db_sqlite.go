package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SQLiteStore persists through modernc.org/sqlite (registered in main).
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: d, path: path}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			password TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS todos (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			completed INTEGER NOT NULL DEFAULT 0,
			priority TEXT NOT NULL DEFAULT 'medium',
			due_date TEXT,
			category TEXT,
			tags TEXT NOT NULL DEFAULT '[]',
			owner_id TEXT NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_todos_owner ON todos(owner_id);`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT NOT NULL,
			owner_id TEXT NOT NULL REFERENCES users(id),
			count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			UNIQUE(owner_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS revoked_tokens (
			jti TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func (s *SQLiteStore) CreateUser(email, passwordHash, name string) (*User, error) {
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
	_, err := s.db.Exec(`INSERT INTO users(id,email,name,password,active,created_at,updated_at) VALUES(?,?,?,?,1,?,?)`,
		u.ID, u.Email, u.Name, u.Password, fmtTime(now), fmtTime(now))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	var active int
	var created, updated string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Password, &active, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Active = active != 0
	u.CreatedAt = parseTime(created)
	u.UpdatedAt = parseTime(updated)
	return &u, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id,email,name,password,active,created_at,updated_at FROM users WHERE email = ?`, email))
}

func (s *SQLiteStore) GetUserByID(id string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id,email,name,password,active,created_at,updated_at FROM users WHERE id = ?`, id))
}

func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func (s *SQLiteStore) CreateTodo(t *Todo) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var due interface{}
	if t.DueDate != nil {
		due = fmtTime(*t.DueDate)
	}
	_, err = tx.Exec(`INSERT INTO todos(id,title,description,completed,priority,due_date,category,tags,owner_id,created_at,updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, boolToInt(t.Completed), t.Priority, due, t.Category,
		marshalTags(t.Tags), t.OwnerID, fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt))
	if err != nil {
		return err
	}
	if t.Category != nil {
		if _, err := tx.Exec(`UPDATE categories SET count = count + 1 WHERE owner_id = ? AND name = ?`, t.OwnerID, *t.Category); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const todoColumns = `id,title,description,completed,priority,due_date,category,tags,owner_id,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTodoRow(r rowScanner) (*Todo, error) {
	var t Todo
	var completed int
	var due sql.NullString
	var tags string
	var created, updated string
	err := r.Scan(&t.ID, &t.Title, &t.Description, &completed, &t.Priority, &due, &t.Category, &tags, &t.OwnerID, &created, &updated)
	if err != nil {
		return nil, err
	}
	t.Completed = completed != 0
	if due.Valid {
		v := parseTime(due.String)
		t.DueDate = &v
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		t.Tags = []string{}
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return &t, nil
}

func (s *SQLiteStore) GetTodo(id string) (*Todo, error) {
	t, err := scanTodoRow(s.db.QueryRow(`SELECT `+todoColumns+` FROM todos WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// todoWhere builds the WHERE clause shared by the list and count queries.
func todoWhere(ownerID string, f TodoFilter) (string, []interface{}) {
	clauses := []string{"owner_id = ?"}
	args := []interface{}{ownerID}
	switch f.Status {
	case "active":
		clauses = append(clauses, "completed = 0")
	case "completed":
		clauses = append(clauses, "completed = 1")
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, f.Priority)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.Search != "" {
		clauses = append(clauses, "(lower(title) LIKE ? OR lower(coalesce(description,'')) LIKE ?)")
		needle := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, needle, needle)
	}
	return strings.Join(clauses, " AND "), args
}

func todoOrder(f TodoFilter) string {
	dir := "ASC"
	if f.Order == "desc" {
		dir = "DESC"
	}
	switch f.Sort {
	case "due_date":
		return "due_date " + dir + ", id ASC"
	case "priority":
		return "CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 WHEN 'urgent' THEN 3 END " + dir + ", id ASC"
	case "title":
		return "title " + dir + ", id ASC"
	default:
		return "created_at " + dir + ", id ASC"
	}
}

func (s *SQLiteStore) ListTodos(ownerID string, f TodoFilter) ([]*Todo, int, error) {
	where, args := todoWhere(ownerID, f)

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM todos WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM todos WHERE %s ORDER BY %s LIMIT ? OFFSET ?`, todoColumns, where, todoOrder(f))
	rows, err := s.db.Query(q, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var todos []*Todo
	for rows.Next() {
		t, err := scanTodoRow(rows)
		if err != nil {
			return nil, 0, err
		}
		todos = append(todos, t)
	}
	return todos, total, rows.Err()
}

func (s *SQLiteStore) UpdateTodo(t *Todo, prevCategory *string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var due interface{}
	if t.DueDate != nil {
		due = fmtTime(*t.DueDate)
	}
	_, err = tx.Exec(`UPDATE todos SET title=?, description=?, completed=?, priority=?, due_date=?, category=?, tags=?, updated_at=? WHERE id=?`,
		t.Title, t.Description, boolToInt(t.Completed), t.Priority, due, t.Category,
		marshalTags(t.Tags), fmtTime(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	if !sameCategory(prevCategory, t.Category) {
		if prevCategory != nil {
			if _, err := tx.Exec(`UPDATE categories SET count = max(count - 1, 0) WHERE owner_id = ? AND name = ?`, t.OwnerID, *prevCategory); err != nil {
				return err
			}
		}
		if t.Category != nil {
			if _, err := tx.Exec(`UPDATE categories SET count = count + 1 WHERE owner_id = ? AND name = ?`, t.OwnerID, *t.Category); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteTodo(t *Todo) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM todos WHERE id = ?`, t.ID); err != nil {
		return err
	}
	if t.Category != nil {
		if _, err := tx.Exec(`UPDATE categories SET count = max(count - 1, 0) WHERE owner_id = ? AND name = ?`, t.OwnerID, *t.Category); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) TodoStats(ownerID string, now time.Time) (*TodoStats, error) {
	stats := &TodoStats{}
	err := s.db.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(completed), 0),
		COALESCE(SUM(CASE WHEN completed = 0 AND due_date IS NOT NULL AND due_date < ? THEN 1 ELSE 0 END), 0)
		FROM todos WHERE owner_id = ?`, fmtTime(now), ownerID).
		Scan(&stats.Total, &stats.Completed, &stats.Overdue)
	if err != nil {
		return nil, err
	}
	stats.Pending = stats.Total - stats.Completed
	return stats, nil
}

func (s *SQLiteStore) ListCategories(ownerID string) ([]*Category, error) {
	rows, err := s.db.Query(`SELECT id,name,color,owner_id,count,created_at FROM categories WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Category
	for rows.Next() {
		var c Category
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.OwnerID, &c.Count, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(created)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateCategory(c *Category) error {
	_, err := s.db.Exec(`INSERT INTO categories(id,name,color,owner_id,count,created_at) VALUES(?,?,?,?,?,?)`,
		c.ID, c.Name, c.Color, c.OwnerID, c.Count, fmtTime(c.CreatedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return ErrDuplicate
	}
	return err
}

func (s *SQLiteStore) RevokeToken(jti string, expiresAt time.Time) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO revoked_tokens(jti, expires_at) VALUES(?,?)`, jti, expiresAt.Unix())
	return err
}

func (s *SQLiteStore) IsTokenRevoked(jti string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) PruneRevokedTokens(now time.Time) error {
	_, err := s.db.Exec(`DELETE FROM revoked_tokens WHERE expires_at < ?`, now.Unix())
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// lifecycle helpers
func (s *SQLiteStore) close() error { return s.db.Close() }
func (s *SQLiteStore) ping() bool   { return s.db.Ping() == nil }
