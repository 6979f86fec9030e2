package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stitchline/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository persists assignments, inspection records, and the reference
// directory in a single sqlite database.
type Repository struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	// One connection serializes every transaction, which is what makes
	// MutateAssignment and AppendInspection atomic per assignment.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			brigade TEXT NOT NULL DEFAULT '',
			position TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			article TEXT NOT NULL,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS operations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			product_id TEXT NOT NULL,
			standard_minutes INTEGER NOT NULL DEFAULT 0,
			sequence_order INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(product_id) REFERENCES products(id)
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			order_number TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'new',
			priority INTEGER NOT NULL DEFAULT 0,
			deadline TEXT,
			FOREIGN KEY(product_id) REFERENCES products(id)
		);`,
		`CREATE TABLE IF NOT EXISTS assignments (
			id TEXT PRIMARY KEY,
			worker_id TEXT NOT NULL,
			operation_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			planned_qty INTEGER NOT NULL,
			actual_qty INTEGER NOT NULL DEFAULT 0,
			defects INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'assigned',
			created_at TEXT NOT NULL,
			start_time TEXT,
			end_time TEXT,
			FOREIGN KEY(worker_id) REFERENCES users(id),
			FOREIGN KEY(operation_id) REFERENCES operations(id),
			FOREIGN KEY(order_id) REFERENCES orders(id)
		);`,
		`CREATE TABLE IF NOT EXISTS quality_checks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			assignment_id TEXT NOT NULL,
			inspector_id TEXT NOT NULL,
			result TEXT NOT NULL,
			defects_found INTEGER NOT NULL DEFAULT 0,
			comments TEXT NOT NULL DEFAULT '',
			check_date TEXT NOT NULL,
			FOREIGN KEY(assignment_id) REFERENCES assignments(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_worker ON assignments(worker_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status, end_time DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_quality_checks_assignment ON quality_checks(assignment_id, check_date DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_users_brigade ON users(brigade);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateAssignment creates assignment.
func (r *Repository) CreateAssignment(ctx context.Context, a domain.Assignment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assignments(id, worker_id, operation_id, order_id, planned_qty, actual_qty, defects, status, created_at, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.WorkerID,
		a.OperationID,
		a.OrderID,
		a.PlannedQty,
		a.ActualQty,
		a.Defects,
		string(a.Status),
		ts(a.CreatedAt),
		nullableTS(a.StartTime),
		nullableTS(a.EndTime),
	)
	if err != nil {
		return fmt.Errorf("%w: insert assignment: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetAssignment returns assignment.
func (r *Repository) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	return getAssignmentByID(ctx, r.db, id)
}

// MutateAssignment applies mutate to one assignment inside a transaction.
// The mutated row is written back only when mutate returns nil, so a
// rejected mutation leaves the stored row untouched.
func (r *Repository) MutateAssignment(ctx context.Context, id string, mutate func(*domain.Assignment) error) (domain.Assignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("%w: begin: %v", domain.ErrStorage, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	a, err := getAssignmentByID(ctx, tx, id)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err = mutate(&a); err != nil {
		return domain.Assignment{}, err
	}
	if err = updateAssignment(ctx, tx, a); err != nil {
		return domain.Assignment{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Assignment{}, fmt.Errorf("%w: commit: %v", domain.ErrStorage, err)
	}
	return a, nil
}

// ListAssignments lists every assignment.
func (r *Repository) ListAssignments(ctx context.Context) ([]domain.Assignment, error) {
	return r.listAssignments(ctx, `
		SELECT id, worker_id, operation_id, order_id, planned_qty, actual_qty, defects, status, created_at, start_time, end_time
		FROM assignments
		ORDER BY created_at DESC, id DESC
	`)
}

// ListWorkerAssignments lists one worker's assignments.
func (r *Repository) ListWorkerAssignments(ctx context.Context, workerID string) ([]domain.Assignment, error) {
	return r.listAssignments(ctx, `
		SELECT id, worker_id, operation_id, order_id, planned_qty, actual_qty, defects, status, created_at, start_time, end_time
		FROM assignments
		WHERE worker_id = ?
		ORDER BY created_at DESC, id DESC
	`, workerID)
}

// ListAssignmentsByStatus lists assignments in one status.
func (r *Repository) ListAssignmentsByStatus(ctx context.Context, status domain.Status) ([]domain.Assignment, error) {
	return r.listAssignments(ctx, `
		SELECT id, worker_id, operation_id, order_id, planned_qty, actual_qty, defects, status, created_at, start_time, end_time
		FROM assignments
		WHERE status = ?
		ORDER BY end_time DESC, created_at DESC, id DESC
	`, string(status))
}

func (r *Repository) listAssignments(ctx context.Context, query string, args ...any) ([]domain.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query assignments: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := []domain.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AppendInspection inserts one inspection record and applies mutate to the
// inspected assignment in the same transaction. Either both writes land or
// neither does.
func (r *Repository) AppendInspection(ctx context.Context, rec domain.InspectionRecord, mutate func(*domain.Assignment) error) (domain.InspectionRecord, domain.Assignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, fmt.Errorf("%w: begin: %v", domain.ErrStorage, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	a, err := getAssignmentByID(ctx, tx, rec.AssignmentID)
	if err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, err
	}
	if err = mutate(&a); err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, err
	}
	if err = updateAssignment(ctx, tx, a); err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO quality_checks(assignment_id, inspector_id, result, defects_found, comments, check_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.AssignmentID,
		rec.InspectorID,
		string(rec.Outcome),
		rec.DefectsFound,
		rec.Notes,
		ts(rec.CheckDate),
	)
	if err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, fmt.Errorf("%w: insert inspection: %v", domain.ErrStorage, err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, fmt.Errorf("%w: inspection id: %v", domain.ErrStorage, err)
	}

	if err = tx.Commit(); err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, fmt.Errorf("%w: commit: %v", domain.ErrStorage, err)
	}
	return rec, a, nil
}

// ListInspections lists the full inspection log, newest first.
func (r *Repository) ListInspections(ctx context.Context) ([]domain.InspectionRecord, error) {
	return r.listInspections(ctx, `
		SELECT id, assignment_id, inspector_id, result, defects_found, comments, check_date
		FROM quality_checks
		ORDER BY check_date DESC, id DESC
	`)
}

// ListAssignmentInspections lists one assignment's inspection records.
func (r *Repository) ListAssignmentInspections(ctx context.Context, assignmentID string) ([]domain.InspectionRecord, error) {
	return r.listInspections(ctx, `
		SELECT id, assignment_id, inspector_id, result, defects_found, comments, check_date
		FROM quality_checks
		WHERE assignment_id = ?
		ORDER BY check_date DESC, id DESC
	`, assignmentID)
}

func (r *Repository) listInspections(ctx context.Context, query string, args ...any) ([]domain.InspectionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query inspections: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := []domain.InspectionRecord{}
	for rows.Next() {
		rec, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateWorker creates a directory entry.
func (r *Repository) CreateWorker(ctx context.Context, w domain.Worker) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, name, role, brigade, position)
		VALUES (?, ?, ?, ?, ?)
	`, w.ID, w.Name, w.Role, w.Brigade, w.Position)
	if err != nil {
		return fmt.Errorf("%w: insert user: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetWorker returns one directory entry.
func (r *Repository) GetWorker(ctx context.Context, id string) (domain.Worker, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, role, brigade, position
		FROM users
		WHERE id = ?
	`, id)
	return scanWorker(row)
}

// ListWorkers lists the directory.
func (r *Repository) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	return r.listWorkers(ctx, `
		SELECT id, name, role, brigade, position
		FROM users
		ORDER BY name ASC, id ASC
	`)
}

// ListBrigadeWorkers lists one brigade's directory entries.
func (r *Repository) ListBrigadeWorkers(ctx context.Context, brigade string) ([]domain.Worker, error) {
	return r.listWorkers(ctx, `
		SELECT id, name, role, brigade, position
		FROM users
		WHERE brigade = ?
		ORDER BY name ASC, id ASC
	`, brigade)
}

func (r *Repository) listWorkers(ctx context.Context, query string, args ...any) ([]domain.Worker, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query users: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := []domain.Worker{}
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateProduct creates a catalog product.
func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products(id, article, name)
		VALUES (?, ?, ?)
	`, p.ID, p.Article, p.Name)
	if err != nil {
		return fmt.Errorf("%w: insert product: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetProduct returns product.
func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, article, name
		FROM products
		WHERE id = ?
	`, id)
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Article, &p.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("%w: scan product: %v", domain.ErrStorage, err)
	}
	return p, nil
}

// CreateOperation creates a catalog operation.
func (r *Repository) CreateOperation(ctx context.Context, op domain.Operation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operations(id, name, product_id, standard_minutes, sequence_order)
		VALUES (?, ?, ?, ?, ?)
	`, op.ID, op.Name, op.ProductID, op.StandardMinutes, op.SequenceOrder)
	if err != nil {
		return fmt.Errorf("%w: insert operation: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetOperation returns operation.
func (r *Repository) GetOperation(ctx context.Context, id string) (domain.Operation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, product_id, standard_minutes, sequence_order
		FROM operations
		WHERE id = ?
	`, id)
	var op domain.Operation
	if err := row.Scan(&op.ID, &op.Name, &op.ProductID, &op.StandardMinutes, &op.SequenceOrder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Operation{}, domain.ErrNotFound
		}
		return domain.Operation{}, fmt.Errorf("%w: scan operation: %v", domain.ErrStorage, err)
	}
	return op, nil
}

// ListOperations lists the operation catalog in sequence order.
func (r *Repository) ListOperations(ctx context.Context) ([]domain.Operation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, product_id, standard_minutes, sequence_order
		FROM operations
		ORDER BY sequence_order ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query operations: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := []domain.Operation{}
	for rows.Next() {
		var op domain.Operation
		if err := rows.Scan(&op.ID, &op.Name, &op.ProductID, &op.StandardMinutes, &op.SequenceOrder); err != nil {
			return nil, fmt.Errorf("%w: scan operation: %v", domain.ErrStorage, err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// CreateOrder creates a catalog order.
func (r *Repository) CreateOrder(ctx context.Context, o domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders(id, order_number, customer_name, product_id, quantity, status, priority, deadline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.OrderNumber, o.CustomerName, o.ProductID, o.Quantity, o.Status, o.Priority, nullableTS(o.Deadline))
	if err != nil {
		return fmt.Errorf("%w: insert order: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetOrder returns order.
func (r *Repository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, customer_name, product_id, quantity, status, priority, deadline
		FROM orders
		WHERE id = ?
	`, id)
	return scanOrder(row)
}

// ListOrders lists every order, highest priority first.
func (r *Repository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return r.listOrders(ctx, `
		SELECT id, order_number, customer_name, product_id, quantity, status, priority, deadline
		FROM orders
		ORDER BY priority DESC, order_number ASC
	`)
}

// ListActiveOrders lists orders still open for assignment.
func (r *Repository) ListActiveOrders(ctx context.Context) ([]domain.Order, error) {
	return r.listOrders(ctx, `
		SELECT id, order_number, customer_name, product_id, quantity, status, priority, deadline
		FROM orders
		WHERE status IN ('new', 'in_progress')
		ORDER BY priority DESC, deadline IS NULL, deadline ASC, order_number ASC
	`)
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query orders: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getAssignmentByID(ctx context.Context, q querier, id string) (domain.Assignment, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, worker_id, operation_id, order_id, planned_qty, actual_qty, defects, status, created_at, start_time, end_time
		FROM assignments
		WHERE id = ?
	`, id)
	return scanAssignment(row)
}

func updateAssignment(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE assignments
		SET planned_qty = ?, actual_qty = ?, defects = ?, status = ?, start_time = ?, end_time = ?
		WHERE id = ?
	`,
		a.PlannedQty,
		a.ActualQty,
		a.Defects,
		string(a.Status),
		nullableTS(a.StartTime),
		nullableTS(a.EndTime),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update assignment: %v", domain.ErrStorage, err)
	}
	return translateNoRows(res)
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanAssignment handles scan assignment.
func scanAssignment(s scanner) (domain.Assignment, error) {
	var (
		a          domain.Assignment
		status     string
		createdRaw string
		startRaw   sql.NullString
		endRaw     sql.NullString
	)
	if err := s.Scan(
		&a.ID,
		&a.WorkerID,
		&a.OperationID,
		&a.OrderID,
		&a.PlannedQty,
		&a.ActualQty,
		&a.Defects,
		&status,
		&createdRaw,
		&startRaw,
		&endRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Assignment{}, domain.ErrNotFound
		}
		return domain.Assignment{}, fmt.Errorf("%w: scan assignment: %v", domain.ErrStorage, err)
	}
	a.Status = domain.NormalizeStatus(domain.Status(status))
	a.CreatedAt = parseTS(createdRaw)
	a.StartTime = parseNullTS(startRaw)
	a.EndTime = parseNullTS(endRaw)
	return a, nil
}

// scanInspection handles scan inspection.
func scanInspection(s scanner) (domain.InspectionRecord, error) {
	var (
		rec      domain.InspectionRecord
		outcome  string
		checkRaw string
	)
	if err := s.Scan(
		&rec.ID,
		&rec.AssignmentID,
		&rec.InspectorID,
		&outcome,
		&rec.DefectsFound,
		&rec.Notes,
		&checkRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InspectionRecord{}, domain.ErrNotFound
		}
		return domain.InspectionRecord{}, fmt.Errorf("%w: scan inspection: %v", domain.ErrStorage, err)
	}
	rec.Outcome = domain.NormalizeOutcome(domain.Outcome(outcome))
	rec.CheckDate = parseTS(checkRaw)
	return rec, nil
}

// scanWorker handles scan worker.
func scanWorker(s scanner) (domain.Worker, error) {
	var w domain.Worker
	if err := s.Scan(&w.ID, &w.Name, &w.Role, &w.Brigade, &w.Position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Worker{}, domain.ErrNotFound
		}
		return domain.Worker{}, fmt.Errorf("%w: scan user: %v", domain.ErrStorage, err)
	}
	return w, nil
}

// scanOrder handles scan order.
func scanOrder(s scanner) (domain.Order, error) {
	var (
		o           domain.Order
		deadlineRaw sql.NullString
	)
	if err := s.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.ProductID, &o.Quantity, &o.Status, &o.Priority, &deadlineRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("%w: scan order: %v", domain.ErrStorage, err)
	}
	o.Deadline = parseNullTS(deadlineRaw)
	return o, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
