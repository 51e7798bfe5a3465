// Package sqlite is a single-node store for scripts, sessions and service
// calls. Documents are kept as JSON next to the columns used for lookups.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"FacilityBot/bot/chat"
	"FacilityBot/entity"
	"FacilityBot/internal/lib/sl"
)

const defaultListLimit = 100

type Store struct {
	conn *sql.DB
	now  func() time.Time
	log  *slog.Logger
}

// Open opens the database at path, applies WAL mode and runs migrations.
func Open(path string, log *slog.Logger) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if err = conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{
		conn: conn,
		now:  time.Now,
		log:  log.With(sl.Module("sqlite")),
	}
	if err = s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS scripts (
script_id  TEXT PRIMARY KEY,
doc        TEXT NOT NULL,
updated_at INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS sessions (
phone      TEXT PRIMARY KEY,
version    INTEGER NOT NULL,
doc        TEXT NOT NULL,
updated_at INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS messages (
id         TEXT PRIMARY KEY,
phone      TEXT NOT NULL,
doc        TEXT NOT NULL,
created_at INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS service_calls (
id         TEXT PRIMARY KEY,
phone      TEXT NOT NULL,
status     TEXT NOT NULL,
custname   TEXT NOT NULL DEFAULT '',
doc        TEXT NOT NULL,
created_at INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_phone ON messages(phone, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_phone ON service_calls(phone, created_at)`,
	}

	for _, stmt := range migrations {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite migration: %w", err)
		}
	}
	return nil
}

func decode[T any](doc string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, fmt.Errorf("sqlite decode: %w", err)
	}
	return &v, nil
}

func listLimit(limit int64) int64 {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

// Scripts

func (s *Store) GetScript(ctx context.Context, scriptID string) (*chat.Script, error) {
	var doc string
	err := s.conn.QueryRowContext(ctx, `SELECT doc FROM scripts WHERE script_id = ?`, scriptID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get script: %w", err)
	}
	return decode[chat.Script](doc)
}

func (s *Store) SaveScript(ctx context.Context, script *chat.Script) error {
	now := s.now()
	if script.CreatedAt.IsZero() {
		script.CreatedAt = now
	}
	script.UpdatedAt = now

	doc, err := json.Marshal(script)
	if err != nil {
		return fmt.Errorf("sqlite encode script: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO scripts(script_id, doc, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(script_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		script.ScriptID, string(doc), now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite save script: %w", err)
	}
	return nil
}

func (s *Store) DeleteScript(ctx context.Context, scriptID string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM scripts WHERE script_id = ?`, scriptID)
	return err
}

func (s *Store) ListScripts(ctx context.Context) ([]*chat.Script, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT doc FROM scripts ORDER BY script_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list scripts: %w", err)
	}
	return scanDocs[chat.Script](rows)
}

// Sessions

func (s *Store) LoadSession(ctx context.Context, phone string) (*chat.Session, error) {
	var doc string
	err := s.conn.QueryRowContext(ctx, `SELECT doc FROM sessions WHERE phone = ?`, phone).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite load session: %w", err)
	}
	return decode[chat.Session](doc)
}

// SaveSession writes the session of a phone. Version 0 replaces whatever is
// stored; any other version must match the stored row.
func (s *Store) SaveSession(ctx context.Context, session *chat.Session) error {
	expected := session.Version
	session.Version = expected + 1

	doc, err := json.Marshal(session)
	if err != nil {
		session.Version = expected
		return fmt.Errorf("sqlite encode session: %w", err)
	}
	updated := session.UpdatedAt.UnixNano()

	if expected == 0 {
		_, err = s.conn.ExecContext(ctx,
			`INSERT INTO sessions(phone, version, doc, updated_at) VALUES(?, ?, ?, ?)
			 ON CONFLICT(phone) DO UPDATE SET version = excluded.version, doc = excluded.doc, updated_at = excluded.updated_at`,
			session.Phone, session.Version, string(doc), updated,
		)
		if err != nil {
			session.Version = expected
			return fmt.Errorf("sqlite save session: %w", err)
		}
		return nil
	}

	res, err := s.conn.ExecContext(ctx,
		`UPDATE sessions SET version = ?, doc = ?, updated_at = ? WHERE phone = ? AND version = ?`,
		session.Version, string(doc), updated, session.Phone, expected,
	)
	if err != nil {
		session.Version = expected
		return fmt.Errorf("sqlite save session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		session.Version = expected
		return fmt.Errorf("sqlite save session: %w", err)
	}
	if n == 0 {
		session.Version = expected
		return chat.ErrSessionConflict
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, phone string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE phone = ?`, phone)
	return err
}

func (s *Store) ListSessions(ctx context.Context, limit int64) ([]*chat.Session, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT doc FROM sessions ORDER BY updated_at DESC LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite list sessions: %w", err)
	}
	return scanDocs[chat.Session](rows)
}

// Messages

func (s *Store) SaveInboundMessage(ctx context.Context, message *entity.InboundMessage) error {
	doc, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("sqlite encode message: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO messages(id, phone, doc, created_at) VALUES(?, ?, ?, ?)`,
		message.ID, message.Phone, string(doc), message.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, phone string, limit int64) ([]*entity.InboundMessage, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT doc FROM messages WHERE (? = '' OR phone = ?) ORDER BY created_at DESC LIMIT ?`,
		phone, phone, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite list messages: %w", err)
	}
	return scanDocs[entity.InboundMessage](rows)
}

// Service calls

func (s *Store) SaveServiceCall(ctx context.Context, call *entity.ServiceCall) error {
	doc, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("sqlite encode service call: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO service_calls(id, phone, status, custname, doc, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		call.ID, call.Phone, call.Status, call.CustomerNumber, string(doc), call.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert service call: %w", err)
	}
	return nil
}

func (s *Store) MarkServiceCallPushed(ctx context.Context, id, docNo string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var doc string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM service_calls WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("service call %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("sqlite mark pushed: %w", err)
	}

	call, err := decode[entity.ServiceCall](doc)
	if err != nil {
		return err
	}
	call.Pushed = true
	call.ErpDocNo = docNo
	call.Status = entity.ServiceCallPushed
	call.UpdatedAt = s.now()

	updated, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("sqlite encode service call: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE service_calls SET status = ?, doc = ? WHERE id = ?`,
		call.Status, string(updated), id,
	); err != nil {
		return fmt.Errorf("sqlite mark pushed: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListServiceCalls(ctx context.Context, f entity.ServiceCallFilter) ([]*entity.ServiceCall, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT doc FROM service_calls
		 WHERE (? = '' OR phone = ?) AND (? = '' OR status = ?)
		 ORDER BY created_at DESC LIMIT ?`,
		f.Phone, f.Phone, f.Status, f.Status, listLimit(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite list service calls: %w", err)
	}
	return scanDocs[entity.ServiceCall](rows)
}

// LookupByPhone derives customer identity from the latest identified
// service call of a phone.
func (s *Store) LookupByPhone(ctx context.Context, phone string) (entity.CustomerInfo, error) {
	var doc string
	err := s.conn.QueryRowContext(ctx,
		`SELECT doc FROM service_calls
		 WHERE phone = ? AND custname NOT IN ('', ?)
		 ORDER BY created_at DESC LIMIT 1`,
		phone, entity.DefaultCustomer,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.CustomerInfo{}, nil
	}
	if err != nil {
		return entity.CustomerInfo{}, fmt.Errorf("sqlite lookup phone: %w", err)
	}
	call, err := decode[entity.ServiceCall](doc)
	if err != nil {
		return entity.CustomerInfo{}, err
	}
	return entity.CustomerInfo{
		Name:         call.CustomerName,
		CustomerID:   call.CustomerNumber,
		DeviceNumber: call.SerialNumber,
	}, nil
}

func scanDocs[T any](rows *sql.Rows) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		v, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
