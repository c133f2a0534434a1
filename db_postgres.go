package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresStore relies on migrations (see migrations/) for its schema.
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresStore{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresStore) Init() error {
	// tables come from migrations; just verify connectivity
	return p.db.Ping()
}

// isUniqueViolation reports a duplicate-key insert.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func (p *PostgresStore) CreateUser(email, passwordHash, name string) (*User, error) {
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
	_, err := p.db.Exec(`INSERT INTO users(id,email,name,password,active,created_at,updated_at) VALUES($1,$2,$3,$4,true,$5,$6)`,
		u.ID, u.Email, u.Name, u.Password, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

func (p *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Password, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (p *PostgresStore) GetUserByEmail(email string) (*User, error) {
	return p.scanUser(p.db.QueryRow(`SELECT id,email,name,password,active,created_at,updated_at FROM users WHERE email = $1`, email))
}

func (p *PostgresStore) GetUserByID(id string) (*User, error) {
	return p.scanUser(p.db.QueryRow(`SELECT id,email,name,password,active,created_at,updated_at FROM users WHERE id = $1`, id))
}

func (p *PostgresStore) CreateTodo(t *Todo) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO todos(id,title,description,completed,priority,due_date,category,tags,owner_id,created_at,updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.Title, t.Description, t.Completed, t.Priority, t.DueDate, t.Category,
		marshalTags(t.Tags), t.OwnerID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}
	if t.Category != nil {
		if _, err := tx.Exec(`UPDATE categories SET count = count + 1 WHERE owner_id = $1 AND name = $2`, t.OwnerID, *t.Category); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanPostgresTodo(r rowScanner) (*Todo, error) {
	var t Todo
	var tags string
	err := r.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.Priority, &t.DueDate, &t.Category, &tags, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func (p *PostgresStore) GetTodo(id string) (*Todo, error) {
	t, err := scanPostgresTodo(p.db.QueryRow(`SELECT `+todoColumns+` FROM todos WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// pgTodoWhere is todoWhere with positional placeholders.
func pgTodoWhere(ownerID string, f TodoFilter) (string, []interface{}) {
	clauses := []string{"owner_id = $1"}
	args := []interface{}{ownerID}
	n := 1
	next := func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}
	switch f.Status {
	case "active":
		clauses = append(clauses, "completed = false")
	case "completed":
		clauses = append(clauses, "completed = true")
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = "+next())
		args = append(args, f.Priority)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = "+next())
		args = append(args, f.Category)
	}
	if f.Search != "" {
		a, b := next(), next()
		clauses = append(clauses, "(title ILIKE "+a+" OR coalesce(description,'') ILIKE "+b+")")
		needle := "%" + f.Search + "%"
		args = append(args, needle, needle)
	}
	return strings.Join(clauses, " AND "), args
}

func (p *PostgresStore) ListTodos(ownerID string, f TodoFilter) ([]*Todo, int, error) {
	where, args := pgTodoWhere(ownerID, f)

	var total int
	if err := p.db.QueryRow(`SELECT COUNT(*) FROM todos WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM todos WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		todoColumns, where, todoOrder(f), len(args)+1, len(args)+2)
	rows, err := p.db.Query(q, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var todos []*Todo
	for rows.Next() {
		t, err := scanPostgresTodo(rows)
		if err != nil {
			return nil, 0, err
		}
		todos = append(todos, t)
	}
	return todos, total, rows.Err()
}

func (p *PostgresStore) UpdateTodo(t *Todo, prevCategory *string) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE todos SET title=$1, description=$2, completed=$3, priority=$4, due_date=$5, category=$6, tags=$7, updated_at=$8 WHERE id=$9`,
		t.Title, t.Description, t.Completed, t.Priority, t.DueDate, t.Category,
		marshalTags(t.Tags), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if !sameCategory(prevCategory, t.Category) {
		if prevCategory != nil {
			if _, err := tx.Exec(`UPDATE categories SET count = greatest(count - 1, 0) WHERE owner_id = $1 AND name = $2`, t.OwnerID, *prevCategory); err != nil {
				return err
			}
		}
		if t.Category != nil {
			if _, err := tx.Exec(`UPDATE categories SET count = count + 1 WHERE owner_id = $1 AND name = $2`, t.OwnerID, *t.Category); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) DeleteTodo(t *Todo) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM todos WHERE id = $1`, t.ID); err != nil {
		return err
	}
	if t.Category != nil {
		if _, err := tx.Exec(`UPDATE categories SET count = greatest(count - 1, 0) WHERE owner_id = $1 AND name = $2`, t.OwnerID, *t.Category); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) TodoStats(ownerID string, now time.Time) (*TodoStats, error) {
	stats := &TodoStats{}
	err := p.db.QueryRow(`SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE completed),
		COUNT(*) FILTER (WHERE NOT completed AND due_date IS NOT NULL AND due_date < $1)
		FROM todos WHERE owner_id = $2`, now, ownerID).
		Scan(&stats.Total, &stats.Completed, &stats.Overdue)
	if err != nil {
		return nil, err
	}
	stats.Pending = stats.Total - stats.Completed
	return stats, nil
}

func (p *PostgresStore) ListCategories(ownerID string) ([]*Category, error) {
	rows, err := p.db.Query(`SELECT id,name,color,owner_id,count,created_at FROM categories WHERE owner_id = $1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.OwnerID, &c.Count, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateCategory(c *Category) error {
	_, err := p.db.Exec(`INSERT INTO categories(id,name,color,owner_id,count,created_at) VALUES($1,$2,$3,$4,$5,$6)`,
		c.ID, c.Name, c.Color, c.OwnerID, c.Count, c.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) RevokeToken(jti string, expiresAt time.Time) error {
	_, err := p.db.Exec(`INSERT INTO revoked_tokens(jti, expires_at) VALUES($1,$2) ON CONFLICT (jti) DO NOTHING`, jti, expiresAt)
	return err
}

func (p *PostgresStore) IsTokenRevoked(jti string) (bool, error) {
	var n int
	err := p.db.QueryRow(`SELECT COUNT(*) FROM revoked_tokens WHERE jti = $1`, jti).Scan(&n)
	return n > 0, err
}

func (p *PostgresStore) PruneRevokedTokens(now time.Time) error {
	_, err := p.db.Exec(`DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	return err
}

// lifecycle helpers
func (p *PostgresStore) close() error { return p.db.Close() }
func (p *PostgresStore) ping() bool   { return p.db.Ping() == nil }
