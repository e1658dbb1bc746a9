package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopmate-labs/shopmate/internal/domain"
	"github.com/shopmate-labs/shopmate/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := store.seedDemoOrders(); err != nil {
		return nil, fmt.Errorf("seed demo orders: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		flow_state TEXT NOT NULL DEFAULT 'idle',
		slots_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);

	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		status TEXT NOT NULL,
		carrier TEXT,
		tracking_number TEXT,
		placed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_email ON orders(email);

	CREATE TABLE IF NOT EXISTS order_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT NOT NULL,
		location TEXT,
		occurred_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// seedDemoOrders inserts the demo fixtures used by the tracking flow.
// Idempotent across restarts.
func (s *SQLiteStore) seedDemoOrders() error {
	type seedEvent struct {
		status      domain.OrderStatus
		description string
		location    string
		daysAgo     int
	}
	seeds := []struct {
		order  domain.Order
		events []seedEvent
	}{
		{
			order: domain.Order{
				OrderID:        "ORD-2024-001",
				Email:          "john.doe@example.com",
				Status:         domain.OrderStatusInTransit,
				Carrier:        "UPS",
				TrackingNumber: "1Z999AA10123456784",
			},
			events: []seedEvent{
				{domain.OrderStatusProcessing, "Order received and payment confirmed", "", 5},
				{domain.OrderStatusShipped, "Package left the fulfillment center", "Louisville, KY", 3},
				{domain.OrderStatusInTransit, "Package in transit to destination", "Columbus, OH", 1},
			},
		},
		{
			order: domain.Order{
				OrderID:        "ORD-2024-002",
				Email:          "jane.smith@company.com",
				Status:         domain.OrderStatusDelivered,
				Carrier:        "FedEx",
				TrackingNumber: "771234567890",
			},
			events: []seedEvent{
				{domain.OrderStatusProcessing, "Order received and payment confirmed", "", 9},
				{domain.OrderStatusShipped, "Package left the fulfillment center", "Memphis, TN", 7},
				{domain.OrderStatusDelivered, "Delivered to front door", "Seattle, WA", 2},
			},
		},
	}

	for _, seed := range seeds {
		placedAt := time.Now().AddDate(0, 0, -10)
		res, err := s.db.Exec(`
			INSERT OR IGNORE INTO orders (order_id, email, status, carrier, tracking_number, placed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			seed.order.OrderID, seed.order.Email, string(seed.order.Status),
			seed.order.Carrier, seed.order.TrackingNumber, placedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert demo order: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if inserted == 0 {
			continue
		}
		for _, ev := range seed.events {
			if _, err := s.db.Exec(`
				INSERT INTO order_events (order_id, status, description, location, occurred_at)
				VALUES (?, ?, ?, ?, ?)`,
				seed.order.OrderID, string(ev.status), ev.description, ev.location,
				time.Now().AddDate(0, 0, -ev.daysAgo).Unix(),
			); err != nil {
				return fmt.Errorf("insert demo order event: %w", err)
			}
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetOrCreateSession loads a session, creating an empty record on first contact.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, id string) (*domain.Session, error) {
	now := time.Now()
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (session_id, flow_state, slots_json, created_at, updated_at)
		VALUES (?, 'idle', '{}', ?, ?)`,
		id, now.Unix(), now.Unix(),
	); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, flow_state, slots_json, created_at, updated_at
		FROM sessions WHERE session_id = ?`, id)

	var sess domain.Session
	var flowState, slotsJSON string
	var createdAt, updatedAt int64
	if err := row.Scan(&sess.ID, &flowState, &slotsJSON, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.FlowState = domain.FlowState(flowState)
	if !sess.FlowState.Valid() {
		slog.Warn("session has unknown flow state, resetting to idle", "session_id", id, "flow_state", flowState)
		sess.FlowState = domain.FlowIdle
	}
	if err := json.Unmarshal([]byte(slotsJSON), &sess.Slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)

	msgs, err := s.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Messages = msgs

	return &sess, nil
}

// AppendMessage durably appends one message to a session's log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, id string, msg domain.Message) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		id, string(msg.Role), msg.Content, ts.Unix(),
	); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_id = ?`,
		time.Now().Unix(), id,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// GetRecentMessages returns the last n messages, most-recent-last.
func (s *SQLiteStore) GetRecentMessages(ctx context.Context, id string, n int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM messages
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, id, n)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	return scanMessages(rows)
}

// GetHistory returns the full ordered conversation log for a session.
// Rows come back in (created_at, id) order so repeated reads with no
// intervening writes are identical.
func (s *SQLiteStore) GetHistory(ctx context.Context, id string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM messages
		WHERE session_id = ? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role string
		var createdAt int64
		if err := rows.Scan(&role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.Timestamp = time.Unix(createdAt, 0)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// ReadSlots returns the current preference slots and flow state.
func (s *SQLiteStore) ReadSlots(ctx context.Context, id string) (domain.PreferenceSlots, domain.FlowState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT flow_state, slots_json FROM sessions WHERE session_id = ?`, id)

	var flowState, slotsJSON string
	err := row.Scan(&flowState, &slotsJSON)
	if err == sql.ErrNoRows {
		return domain.PreferenceSlots{}, domain.FlowIdle, nil
	}
	if err != nil {
		return domain.PreferenceSlots{}, domain.FlowIdle, fmt.Errorf("scan slots row: %w", err)
	}

	var slots domain.PreferenceSlots
	if err := json.Unmarshal([]byte(slotsJSON), &slots); err != nil {
		return domain.PreferenceSlots{}, domain.FlowIdle, fmt.Errorf("decode slots: %w", err)
	}
	state := domain.FlowState(flowState)
	if !state.Valid() {
		state = domain.FlowIdle
	}
	return slots, state, nil
}

// WriteSlots atomically persists slots and flow state in one statement.
func (s *SQLiteStore) WriteSlots(ctx context.Context, id string, slots domain.PreferenceSlots, state domain.FlowState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid flow state: %q", state)
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO sessions (session_id, flow_state, slots_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			flow_state = excluded.flow_state,
			slots_json = excluded.slots_json,
			updated_at = excluded.updated_at`
	result, err := s.db.ExecContext(ctx, query, id, string(state), string(data), now, now)
	if shared.IsSQLiteConflictError(err) {
		// One retry after a short backoff covers transient lock contention.
		time.Sleep(50 * time.Millisecond)
		result, err = s.db.ExecContext(ctx, query, id, string(state), string(data), now, now)
	}
	if err != nil {
		return fmt.Errorf("write slots: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		slog.Warn("WriteSlots affected 0 rows", "session_id", id)
	}
	return nil
}

// GetOrder looks up an order by customer email and order id.
func (s *SQLiteStore) GetOrder(ctx context.Context, email, orderID string) (*domain.Order, []domain.OrderEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, email, status, carrier, tracking_number, placed_at
		FROM orders WHERE order_id = ? AND email = ? COLLATE NOCASE`, orderID, email)

	var order domain.Order
	var status string
	var carrier, tracking sql.NullString
	var placedAt int64
	err := row.Scan(&order.OrderID, &order.Email, &status, &carrier, &tracking, &placedAt)
	if err == sql.ErrNoRows {
		return nil, nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scan order row: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.Carrier = carrier.String
	order.TrackingNumber = tracking.String
	order.PlacedAt = time.Unix(placedAt, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, description, location, occurred_at
		FROM order_events WHERE order_id = ? ORDER BY occurred_at ASC, id ASC`, order.OrderID)
	if err != nil {
		return nil, nil, fmt.Errorf("query order events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close order event rows", "error", closeErr)
		}
	}()

	var events []domain.OrderEvent
	for rows.Next() {
		var ev domain.OrderEvent
		var evStatus string
		var location sql.NullString
		var occurredAt int64
		if err := rows.Scan(&evStatus, &ev.Description, &location, &occurredAt); err != nil {
			return nil, nil, fmt.Errorf("scan order event row: %w", err)
		}
		ev.Status = domain.OrderStatus(evStatus)
		ev.Location = location.String
		ev.OccurredAt = time.Unix(occurredAt, 0)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate order events: %w", err)
	}

	return &order, events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
