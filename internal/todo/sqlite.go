package todo

import (
	"context"
	"database/sql"
	"time"

	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists todos in a local SQLite database. The status
// guard rides in the UPDATE's WHERE clause, so compare-and-swap holds
// across processes sharing the file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the todo database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, storeErr("open", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, storeErr("open", err)
		}
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS todos (
		id                  TEXT PRIMARY KEY,
		scope               TEXT NOT NULL,
		scope_id            TEXT NOT NULL DEFAULT '',
		title               TEXT NOT NULL,
		context             TEXT NOT NULL DEFAULT '',
		completion_criteria TEXT NOT NULL DEFAULT '',
		agent_type_hint     TEXT NOT NULL DEFAULT '',
		priority            TEXT NOT NULL DEFAULT 'medium',
		status              TEXT NOT NULL,
		creator_id          TEXT NOT NULL DEFAULT '',
		executor_id         TEXT NOT NULL DEFAULT '',
		outcome             TEXT NOT NULL DEFAULT '',
		created_at          INTEGER NOT NULL,
		updated_at          INTEGER NOT NULL,
		started_at          INTEGER,
		completed_at        INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_todos_status ON todos(status);
	CREATE INDEX IF NOT EXISTS idx_todos_scope ON todos(scope, status);
	CREATE INDEX IF NOT EXISTS idx_todos_created ON todos(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return storeErr("init", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, td *Todo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todos (id, scope, scope_id, title, context, completion_criteria,
			agent_type_hint, priority, status, creator_id, executor_id, outcome,
			created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, td.ID, string(td.Scope), td.ScopeID, td.Title, td.Context, td.CompletionCriteria,
		td.AgentTypeHint, string(td.Priority), string(td.Status),
		td.CreatorID, td.ExecutorID, td.Outcome,
		td.CreatedAt.Unix(), td.UpdatedAt.Unix(),
		unixOrNil(td.StartedAt), unixOrNil(td.CompletedAt))
	if err != nil {
		return storeErr("create", err)
	}
	return nil
}

const todoColumns = `id, scope, scope_id, title, context, completion_criteria,
	agent_type_hint, priority, status, creator_id, executor_id, outcome,
	created_at, updated_at, started_at, completed_at`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = ? LIMIT 1`, id)

	td, err := scanTodo(row)
	if err == sql.ErrNoRows {
		return nil, notFoundErr(id)
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	return td, nil
}

func (s *SQLiteStore) Update(ctx context.Context, td *Todo, expect Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE todos SET
			title = ?, context = ?, completion_criteria = ?, agent_type_hint = ?,
			priority = ?, status = ?, executor_id = ?, outcome = ?,
			updated_at = ?, started_at = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, td.Title, td.Context, td.CompletionCriteria, td.AgentTypeHint,
		string(td.Priority), string(td.Status), td.ExecutorID, td.Outcome,
		td.UpdatedAt.Unix(),
		unixOrNil(td.StartedAt), unixOrNil(td.CompletedAt),
		td.ID, string(expect))
	if err != nil {
		return storeErr("update", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("update", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing matched: either the row is gone or another writer moved
	// the status first.
	var current string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM todos WHERE id = ? LIMIT 1`, td.ID).Scan(&current)
	if err == sql.ErrNoRows {
		return notFoundErr(td.ID)
	}
	if err != nil {
		return storeErr("update", err)
	}
	return conflictErr("todo " + td.ID + " is " + current + ", expected " + string(expect))
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Scope != "" {
		query += ` AND scope = ?`
		args = append(args, string(filter.Scope))
	}
	if filter.CreatorID != "" {
		query += ` AND creator_id = ?`
		args = append(args, filter.CreatorID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list", err)
	}
	defer rows.Close()

	var out []*Todo
	for rows.Next() {
		td, err := scanTodo(rows)
		if err != nil {
			return nil, storeErr("list", err)
		}
		out = append(out, td)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	return out, nil
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM todos GROUP BY status`)
	if err != nil {
		return nil, storeErr("count", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeErr("count", err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("count", err)
	}
	return counts, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*Todo, error) {
	var td Todo
	var scope, priority, status string
	var createdAt, updatedAt int64
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(&td.ID, &scope, &td.ScopeID, &td.Title, &td.Context,
		&td.CompletionCriteria, &td.AgentTypeHint, &priority, &status,
		&td.CreatorID, &td.ExecutorID, &td.Outcome,
		&createdAt, &updatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	td.Scope = Scope(scope)
	td.Priority = Priority(priority)
	td.Status = Status(status)
	td.CreatedAt = time.Unix(createdAt, 0)
	td.UpdatedAt = time.Unix(updatedAt, 0)
	if startedAt.Valid {
		at := time.Unix(startedAt.Int64, 0)
		td.StartedAt = &at
	}
	if completedAt.Valid {
		at := time.Unix(completedAt.Int64, 0)
		td.CompletedAt = &at
	}
	return &td, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
