package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

// Options configures the connection pool.
type Options struct {
	DatabaseURL string
	// CloudSQLInstance, when set, routes connections through the Cloud SQL connector
	// ("project:region:instance").
	CloudSQLInstance string
	MaxConns         int32
}

// Store provides Postgres-backed persistence for the Account Store.
type Store struct {
	pool   *pgxpool.Pool
	dialer *cloudsqlconn.Dialer
}

// NewStore creates a new Store and runs migrations.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	s := &Store{}
	if instance := strings.TrimSpace(opts.CloudSQLInstance); instance != "" {
		d, err := cloudsqlconn.NewDialer(ctx)
		if err != nil {
			return nil, fmt.Errorf("create cloud sql dialer: %w", err)
		}
		cfg.ConnConfig.DialFunc = func(ctx context.Context, _ string, _ string) (net.Conn, error) {
			return d.Dial(ctx, instance)
		}
		s.dialer = d
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		s.closeDialer()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	s.pool = pool

	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	s.closeDialer()
}

func (s *Store) closeDialer() {
	if s.dialer != nil {
		_ = s.dialer.Close()
		s.dialer = nil
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			type TEXT,
			account_type TEXT,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			wallet_balance BIGINT NOT NULL DEFAULT 0 CHECK (wallet_balance >= 0),
			coins BIGINT NOT NULL DEFAULT 0 CHECK (coins >= 0),
			unread_messages INT NOT NULL DEFAULT 0,
			messages JSONB NOT NULL DEFAULT '[]'::jsonb,
			owner TEXT,
			owner_first_name TEXT,
			owner_middle_name TEXT,
			owner_last_name TEXT,
			owner_birth_date TEXT,
			owner_gender TEXT,
			owner_nationality TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS accounts_owner_idx ON accounts (owner);`,
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			position BIGSERIAL,
			category TEXT NOT NULL,
			active BOOLEAN,
			name TEXT NOT NULL DEFAULT '',
			name_en TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			service_id TEXT NOT NULL DEFAULT '',
			service_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS requests_client_created_idx ON requests (client_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			target_id TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT false,
			type TEXT NOT NULL DEFAULT '',
			issued_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS notifications_target_idx ON notifications (target_id);`,
		`CREATE TABLE IF NOT EXISTS wallet_topups (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			order_ref TEXT UNIQUE NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			bonus BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			lang TEXT NOT NULL DEFAULT 'ar',
			status TEXT NOT NULL,
			wallet_credited BOOLEAN NOT NULL DEFAULT false,
			wallet_notified BOOLEAN NOT NULL DEFAULT false,
			coins_credited BOOLEAN NOT NULL DEFAULT false,
			coins_notified BOOLEAN NOT NULL DEFAULT false,
			wallet_notification_id TEXT NOT NULL DEFAULT '',
			coins_notification_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS wallet_topups_status_updated_idx ON wallet_topups (status, updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const accountColumns = `id, name, COALESCE(type, ''), COALESCE(account_type, ''), phone, email,
	wallet_balance, coins, unread_messages, messages, COALESCE(owner, ''),
	COALESCE(owner_first_name, ''), COALESCE(owner_middle_name, ''), COALESCE(owner_last_name, ''),
	COALESCE(owner_birth_date, ''), COALESCE(owner_gender, ''), COALESCE(owner_nationality, '')`

// GetAccount fetches an account by id.
func (s *Store) GetAccount(ctx context.Context, id string) (models.AccountRecord, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1;`
	return scanAccount(s.pool.QueryRow(ctx, query, id))
}

// ListCompaniesByOwner returns company accounts owned by any of the given names or ids.
func (s *Store) ListCompaniesByOwner(ctx context.Context, owners []string) ([]models.AccountRecord, error) {
	query := `SELECT ` + accountColumns + `
	FROM accounts
	WHERE COALESCE(NULLIF(LOWER(TRIM(type)), ''), LOWER(TRIM(account_type))) = 'company'
	  AND owner = ANY($1)
	ORDER BY id;`
	rows, err := s.pool.Query(ctx, query, owners)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AccountRecord
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListServices returns every catalog entry in insertion order.
func (s *Store) ListServices(ctx context.Context) ([]models.Service, error) {
	const query = `SELECT id, category, active, name, name_en, price FROM services ORDER BY position;`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Service
	for rows.Next() {
		var svc models.Service
		var category string
		if err := rows.Scan(&svc.ID, &category, &svc.Active, &svc.Name, &svc.NameEN, &svc.Price); err != nil {
			return nil, err
		}
		svc.Category = models.ServiceCategory(category)
		out = append(out, svc)
	}
	return out, rows.Err()
}

// ListOrdersByClient returns a client's requests, newest first.
func (s *Store) ListOrdersByClient(ctx context.Context, clientID string) ([]models.Order, error) {
	const query = `
	SELECT id, client_id, service_id, service_name, status, price, created_at
	FROM requests
	WHERE client_id = $1
	ORDER BY created_at DESC;
	`
	rows, err := s.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.ClientID, &o.ServiceID, &o.ServiceName, &o.Status, &o.Price, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateNotification inserts a notification row.
func (s *Store) CreateNotification(ctx context.Context, n models.Notification) error {
	return insertNotification(ctx, s.pool, n)
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertNotification(ctx context.Context, db execer, n models.Notification) error {
	const query = `
	INSERT INTO notifications (id, target_id, title, body, is_read, type, issued_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	if _, err := db.Exec(ctx, query, n.ID, n.TargetID, n.Title, n.Body, n.IsRead, n.Type, n.Timestamp); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// MarkNotificationRead flips is_read to true; repeating it is harmless.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListNotificationsByTarget returns every notification addressed to targetID.
func (s *Store) ListNotificationsByTarget(ctx context.Context, targetID string) ([]models.Notification, error) {
	const query = `
	SELECT id, target_id, title, body, is_read, type, issued_at
	FROM notifications
	WHERE target_id = $1;
	`
	rows, err := s.pool.Query(ctx, query, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.TargetID, &n.Title, &n.Body, &n.IsRead, &n.Type, &n.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const topUpColumns = `id, account_id, order_ref, amount, bonus, currency, lang, status,
	wallet_credited, wallet_notified, coins_credited, coins_notified,
	wallet_notification_id, coins_notification_id, created_at, updated_at`

// CreateTopUp inserts a new top-up row.
func (s *Store) CreateTopUp(ctx context.Context, t models.TopUp) (models.TopUp, error) {
	query := `
	INSERT INTO wallet_topups (id, account_id, order_ref, amount, bonus, currency, lang, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + topUpColumns + `;`
	created, err := scanTopUp(s.pool.QueryRow(ctx, query, t.ID, t.AccountID, t.OrderRef, t.Amount, t.Bonus, t.Currency, t.Lang, string(t.Status)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return models.TopUp{}, storage.ErrAlreadyExists
			case "23503":
				return models.TopUp{}, storage.ErrNotFound
			}
		}
		return models.TopUp{}, err
	}
	return created, nil
}

// GetTopUpByOrderRef fetches a top-up by its payment order reference.
func (s *Store) GetTopUpByOrderRef(ctx context.Context, orderRef string) (models.TopUp, error) {
	query := `SELECT ` + topUpColumns + ` FROM wallet_topups WHERE order_ref = $1;`
	return scanTopUp(s.pool.QueryRow(ctx, query, orderRef))
}

// TransitionTopUp performs a compare-and-set on the status column.
func (s *Store) TransitionTopUp(ctx context.Context, id string, from, to models.TopUpStatus) (models.TopUp, error) {
	query := `
	UPDATE wallet_topups SET status = $3, updated_at = NOW()
	WHERE id = $1 AND status = $2
	RETURNING ` + topUpColumns + `;`
	updated, err := scanTopUp(s.pool.QueryRow(ctx, query, id, string(from), string(to)))
	if errors.Is(err, storage.ErrNotFound) {
		current, getErr := scanTopUp(s.pool.QueryRow(ctx, `SELECT `+topUpColumns+` FROM wallet_topups WHERE id = $1;`, id))
		if getErr != nil {
			return models.TopUp{}, getErr
		}
		return current, storage.ErrConflict
	}
	return updated, err
}

// ApplyTopUpStep locks the top-up row and applies the step together with its flag.
func (s *Store) ApplyTopUpStep(ctx context.Context, id string, step models.TopUpStep, notice *models.Notification) (models.TopUp, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.TopUp{}, false, fmt.Errorf("begin step tx: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := scanTopUp(tx.QueryRow(ctx, `SELECT `+topUpColumns+` FROM wallet_topups WHERE id = $1 FOR UPDATE;`, id))
	if err != nil {
		return models.TopUp{}, false, err
	}
	if t.Status != models.TopUpCredited {
		return t, false, storage.ErrConflict
	}
	if t.StepDone(step) {
		return t, false, nil
	}

	var update string
	var args []any
	switch step {
	case models.StepWalletCredit, models.StepCoinCredit:
		column, delta, flag := "wallet_balance", t.Amount, "wallet_credited"
		if step == models.StepCoinCredit {
			column, delta, flag = "coins", t.Bonus, "coins_credited"
		}
		tag, err := tx.Exec(ctx, `UPDATE accounts SET `+column+` = `+column+` + $2 WHERE id = $1;`, t.AccountID, delta)
		if err != nil {
			return t, false, fmt.Errorf("apply %s: %w", step, err)
		}
		if tag.RowsAffected() == 0 {
			return t, false, storage.ErrNotFound
		}
		update = `UPDATE wallet_topups SET ` + flag + ` = true, updated_at = NOW() WHERE id = $1 RETURNING ` + topUpColumns + `;`
		args = []any{id}
	case models.StepWalletNotice, models.StepCoinNotice:
		if notice == nil {
			return t, false, fmt.Errorf("step %s requires a notification", step)
		}
		if err := insertNotification(ctx, tx, *notice); err != nil {
			return t, false, fmt.Errorf("apply %s: %w", step, err)
		}
		flag, idColumn := "wallet_notified", "wallet_notification_id"
		if step == models.StepCoinNotice {
			flag, idColumn = "coins_notified", "coins_notification_id"
		}
		update = `UPDATE wallet_topups SET ` + flag + ` = true, ` + idColumn + ` = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + topUpColumns + `;`
		args = []any{id, notice.ID}
	default:
		return t, false, fmt.Errorf("unknown top-up step %q", step)
	}

	updated, err := scanTopUp(tx.QueryRow(ctx, update, args...))
	if err != nil {
		return t, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return t, false, fmt.Errorf("commit step tx: %w", err)
	}
	return updated, true, nil
}

// ListIncompleteTopUps finds credited top-ups whose later steps never landed.
func (s *Store) ListIncompleteTopUps(ctx context.Context, updatedBefore time.Time, limit int) ([]models.TopUp, error) {
	query := `
	SELECT ` + topUpColumns + `
	FROM wallet_topups
	WHERE status = 'credited'
	  AND updated_at < $1
	  AND (NOT wallet_credited OR NOT wallet_notified OR (bonus > 0 AND (NOT coins_credited OR NOT coins_notified)))
	ORDER BY created_at
	LIMIT $2;`
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, query, updatedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TopUp
	for rows.Next() {
		t, err := scanTopUp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (models.AccountRecord, error) {
	var a models.AccountRecord
	if err := row.Scan(&a.ID, &a.DisplayName, &a.Type, &a.AccountType, &a.Phone, &a.Email,
		&a.WalletBalance, &a.Coins, &a.UnreadMessages, &a.Messages, &a.Owner,
		&a.OwnerFirstName, &a.OwnerMiddleName, &a.OwnerLastName,
		&a.OwnerBirthDate, &a.OwnerGender, &a.OwnerNationality); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AccountRecord{}, storage.ErrNotFound
		}
		return models.AccountRecord{}, err
	}
	return a, nil
}

func scanTopUp(row pgx.Row) (models.TopUp, error) {
	var t models.TopUp
	var status string
	if err := row.Scan(&t.ID, &t.AccountID, &t.OrderRef, &t.Amount, &t.Bonus, &t.Currency, &t.Lang, &status,
		&t.WalletCredited, &t.WalletNotified, &t.CoinsCredited, &t.CoinsNotified,
		&t.WalletNotificationID, &t.CoinsNotificationID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TopUp{}, storage.ErrNotFound
		}
		return models.TopUp{}, err
	}
	t.Status = models.TopUpStatus(status)
	return t, nil
}
