package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/brigade/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Workspace CRUD ---

func (s *SQLiteStore) CreateWorkspace(ctx context.Context, ws *model.Workspace) error {
	s.logger.Debug("sql", "op", "insert", "table", "workspaces", "id", ws.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, admin_email, created_at) VALUES (?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.AdminEmail, ws.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	s.logger.Debug("sql", "op", "select", "table", "workspaces", "id", id)

	var ws model.Workspace
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, admin_email, created_at FROM workspaces WHERE id = ?`, id,
	).Scan(&ws.ID, &ws.Name, &ws.AdminEmail, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ws.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &ws, nil
}

func (s *SQLiteStore) ListWorkspaces(ctx context.Context, opts model.ListOptions) ([]*model.Workspace, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "workspaces", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspaces`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, admin_email, created_at FROM workspaces ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Workspace
	for rows.Next() {
		var ws model.Workspace
		var createdAt string
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.AdminEmail, &createdAt); err != nil {
			return nil, 0, err
		}
		ws.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &ws)
	}
	return out, total, rows.Err()
}

// --- Dish CRUD ---

func (s *SQLiteStore) CreateDish(ctx context.Context, dish *model.Dish) error {
	s.logger.Debug("sql", "op", "insert", "table", "dishes", "id", dish.ID)

	ingredientsJSON, err := marshalStrings(dish.Ingredients)
	if err != nil {
		return fmt.Errorf("marshal ingredients: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dishes (id, workspace_id, name, prep_minutes, image_url, ingredients)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		dish.ID, dish.WorkspaceID, dish.Name, dish.PrepMinutes, dish.ImageURL, ingredientsJSON,
	)
	return err
}

func (s *SQLiteStore) GetDish(ctx context.Context, id string) (*model.Dish, error) {
	s.logger.Debug("sql", "op", "select", "table", "dishes", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, name, prep_minutes, image_url, ingredients FROM dishes WHERE id = ?`, id)
	dish, err := scanDish(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return dish, err
}

func (s *SQLiteStore) ListDishes(ctx context.Context, workspaceID string) ([]*model.Dish, error) {
	s.logger.Debug("sql", "op", "list", "table", "dishes", "workspace_id", workspaceID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, name, prep_minutes, image_url, ingredients
		 FROM dishes WHERE workspace_id = ? ORDER BY name`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Dish
	for rows.Next() {
		dish, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dish)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateDish(ctx context.Context, dish *model.Dish) error {
	s.logger.Debug("sql", "op", "update", "table", "dishes", "id", dish.ID)

	ingredientsJSON, err := marshalStrings(dish.Ingredients)
	if err != nil {
		return fmt.Errorf("marshal ingredients: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE dishes SET name=?, prep_minutes=?, image_url=?, ingredients=? WHERE id=?`,
		dish.Name, dish.PrepMinutes, dish.ImageURL, ingredientsJSON, dish.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("dish %s not found", dish.ID)
	}
	return nil
}

// UpdateDishPrepMinutes sets the estimate of dish id to to, provided it is
// still from. Other columns are never touched.
func (s *SQLiteStore) UpdateDishPrepMinutes(ctx context.Context, id string, from, to int) (bool, error) {
	s.logger.Debug("sql", "op", "update", "table", "dishes", "id", id, "prep_minutes", to)

	result, err := s.db.ExecContext(ctx,
		`UPDATE dishes SET prep_minutes=? WHERE id=? AND prep_minutes=?`,
		to, id, from,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) DeleteDish(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "dishes", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM dishes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("dish %s not found", id)
	}
	return nil
}

// DeleteDishesByWorkspace removes a workspace's whole menu and reports how
// many dishes went.
func (s *SQLiteStore) DeleteDishesByWorkspace(ctx context.Context, workspaceID string) (int, error) {
	s.logger.Debug("sql", "op", "delete_all", "table", "dishes", "workspace_id", workspaceID)

	result, err := s.db.ExecContext(ctx, `DELETE FROM dishes WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// --- Task rows ---

const taskColumns = `id, workspace_id, dish_id, dish_name, table_number, quantity, is_vip, state,
	placed_at, prep_minutes, start_at, allergies, seq, completed_at`

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "insert", "table", "tasks", "id", task.ID)

	allergiesJSON, err := marshalStrings(task.Allergies)
	if err != nil {
		return fmt.Errorf("marshal allergies: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.WorkspaceID, task.DishID, task.DishName, task.TableNumber, task.Quantity,
		task.VIP, string(task.State),
		task.PlacedAt.Format(time.RFC3339Nano), task.PrepMinutes, task.StartAt.Format(time.RFC3339Nano),
		allergiesJSON, int64(task.Seq), formatTimePtr(task.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	s.logger.Debug("sql", "op", "select", "table", "tasks", "id", id)

	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

// ListTasks returns stored task rows, newest placement first.
func (s *SQLiteStore) ListTasks(ctx context.Context, opts model.ListOptions) ([]*model.Task, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "tasks", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	// Build WHERE clause dynamically based on filters.
	var whereClauses []string
	var countArgs []any

	if opts.WorkspaceID != "" {
		whereClauses = append(whereClauses, "workspace_id = ?")
		countArgs = append(countArgs, opts.WorkspaceID)
	}
	if opts.State != "" {
		whereClauses = append(whereClauses, "state = ?")
		countArgs = append(countArgs, string(opts.State))
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + taskColumns + ` FROM tasks` + whereSQL + ` ORDER BY placed_at DESC, seq DESC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}
	return tasks, total, rows.Err()
}

func (s *SQLiteStore) UpdateTaskState(ctx context.Context, id string, state model.TaskState, completedAt *time.Time) error {
	s.logger.Debug("sql", "op", "update_state", "table", "tasks", "id", id, "state", state)

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state=?, completed_at=? WHERE id=?`,
		string(state), formatTimePtr(completedAt), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "tasks", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// --- helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanDish(sc scanner) (*model.Dish, error) {
	var dish model.Dish
	var ingredientsJSON string
	if err := sc.Scan(&dish.ID, &dish.WorkspaceID, &dish.Name, &dish.PrepMinutes, &dish.ImageURL, &ingredientsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ingredientsJSON), &dish.Ingredients); err != nil {
		return nil, fmt.Errorf("unmarshal ingredients: %w", err)
	}
	return &dish, nil
}

func scanTask(sc scanner) (*model.Task, error) {
	var task model.Task
	var state, placedAt, startAt, allergiesJSON string
	var seq int64
	var completedAt *string

	if err := sc.Scan(&task.ID, &task.WorkspaceID, &task.DishID, &task.DishName, &task.TableNumber, &task.Quantity,
		&task.VIP, &state, &placedAt, &task.PrepMinutes, &startAt, &allergiesJSON, &seq, &completedAt); err != nil {
		return nil, err
	}

	task.State = model.ParseTaskState(state)
	task.Seq = uint64(seq)
	task.PlacedAt, _ = time.Parse(time.RFC3339Nano, placedAt)
	task.StartAt, _ = time.Parse(time.RFC3339Nano, startAt)
	if err := json.Unmarshal([]byte(allergiesJSON), &task.Allergies); err != nil {
		return nil, fmt.Errorf("unmarshal allergies: %w", err)
	}
	if len(task.Allergies) == 0 {
		task.Allergies = nil
	}
	if completedAt != nil {
		t, _ := time.Parse(time.RFC3339Nano, *completedAt)
		task.CompletedAt = &t
	}
	return &task, nil
}

func marshalStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}
