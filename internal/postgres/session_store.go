package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of *pgxpool.Pool and pgx.Tx used by SessionStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionStore implements domain.SessionStore using PostgreSQL.
type SessionStore struct {
	db   DBTX
	opts []domain.SessionOption
}

// Compile-time check that SessionStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a new PostgreSQL-backed session store. opts are
// applied to every session it returns.
func NewSessionStore(db DBTX, opts ...domain.SessionOption) *SessionStore {
	return &SessionStore{
		db:   db,
		opts: opts,
	}
}

const sessionColumns = `id, customer_id, guest, cart_id, payment_method, state, total_cents, delivery,
	created_at, expires_at, payment_reference, order_id, confirmed_at, canceled_at, completed_at,
	cancel_reason, version`

const insertSession = `
INSERT INTO checkout_sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
ON CONFLICT (id) DO NOTHING`

const updateSession = `
UPDATE checkout_sessions SET
	customer_id = $2,
	guest = $3,
	cart_id = $4,
	payment_method = $5,
	state = $6,
	total_cents = $7,
	delivery = $8,
	created_at = $9,
	expires_at = $10,
	payment_reference = $11,
	order_id = $12,
	confirmed_at = $13,
	canceled_at = $14,
	completed_at = $15,
	cancel_reason = $16,
	version = version + 1,
	updated_at = NOW()
WHERE id = $1 AND version = $17`

// Save inserts a new session or updates an existing one if its version
// matches the stored row.
func (s *SessionStore) Save(ctx context.Context, session *domain.CheckoutSession) error {
	const op = "postgres.save_session"

	snap := session.Snapshot()
	id, ok := pgUUIDFromString(snap.ID)
	if !ok {
		return domain.Invalid(op, "session id must be a UUID")
	}

	guest, err := marshalNullable(snap.Guest)
	if err != nil {
		return domain.Internal(err, op, "failed to encode guest details")
	}
	delivery, err := json.Marshal(snap.Delivery)
	if err != nil {
		return domain.Internal(err, op, "failed to encode delivery details")
	}

	args := []any{
		id,
		pgTextFromString(snap.CustomerID),
		guest,
		snap.CartID,
		string(snap.PaymentMethod),
		string(snap.State),
		snap.TotalCents,
		delivery,
		snap.CreatedAt,
		snap.ExpiresAt,
		pgTextFromString(snap.PaymentReference),
		pgTextFromString(snap.OrderID),
		pgTimestamptzFromPtr(snap.ConfirmedAt),
		pgTimestamptzFromPtr(snap.CanceledAt),
		pgTimestamptzFromPtr(snap.CompletedAt),
		pgTextFromString(snap.CancelReason),
	}

	query := insertSession
	if snap.Version > 0 {
		query = updateSession
		args = append(args, snap.Version)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return domain.Internal(err, op, "failed to save checkout session")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict.With(op, "session_id", snap.ID, "version", snap.Version)
	}

	session.Stored(snap.Version + 1)
	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	const op = "postgres.get_session"

	pgID, ok := pgUUIDFromString(id)
	if !ok {
		return nil, domain.NotFound(op, id)
	}

	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM checkout_sessions WHERE id = $1`, pgID)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, id)
		}
		return nil, domain.Internal(err, op, "failed to get checkout session")
	}

	return domain.RestoreCheckoutSession(snap, s.opts...)
}

// ListExpired returns open sessions that expired before now, oldest first.
func (s *SessionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.CheckoutSession, error) {
	const op = "postgres.list_expired"

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM checkout_sessions
		WHERE state IN ('started', 'payment_confirmed') AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list expired sessions")
	}
	defer rows.Close()

	var sessions []*domain.CheckoutSession
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan checkout session")
		}
		session, err := domain.RestoreCheckoutSession(snap, s.opts...)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list expired sessions")
	}

	return sessions, nil
}

// DeleteFinishedBefore removes completed and canceled sessions that ended
// before cutoff.
func (s *SessionStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "postgres.delete_finished"

	tag, err := s.db.Exec(ctx, `
		DELETE FROM checkout_sessions
		WHERE state IN ('completed', 'canceled')
		  AND COALESCE(completed_at, canceled_at) < $1`, cutoff)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to delete finished sessions")
	}
	return tag.RowsAffected(), nil
}

func scanSnapshot(row pgx.Row) (domain.SessionSnapshot, error) {
	var (
		snap          domain.SessionSnapshot
		id            pgtype.UUID
		customerID    pgtype.Text
		guest         []byte
		paymentMethod string
		state         string
		delivery      []byte
		paymentRef    pgtype.Text
		orderID       pgtype.Text
		confirmedAt   pgtype.Timestamptz
		canceledAt    pgtype.Timestamptz
		completedAt   pgtype.Timestamptz
		cancelReason  pgtype.Text
	)

	err := row.Scan(
		&id,
		&customerID,
		&guest,
		&snap.CartID,
		&paymentMethod,
		&state,
		&snap.TotalCents,
		&delivery,
		&snap.CreatedAt,
		&snap.ExpiresAt,
		&paymentRef,
		&orderID,
		&confirmedAt,
		&canceledAt,
		&completedAt,
		&cancelReason,
		&snap.Version,
	)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	if len(guest) > 0 {
		snap.Guest = &domain.GuestInfo{}
		if err := json.Unmarshal(guest, snap.Guest); err != nil {
			return domain.SessionSnapshot{}, fmt.Errorf("decode guest: %w", err)
		}
	}
	if err := json.Unmarshal(delivery, &snap.Delivery); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("decode delivery: %w", err)
	}

	snap.ID = stringFromPgUUID(id)
	snap.CustomerID = stringFromPgText(customerID)
	snap.PaymentMethod = domain.PaymentMethod(paymentMethod)
	snap.State = domain.SessionState(state)
	snap.PaymentReference = stringFromPgText(paymentRef)
	snap.OrderID = stringFromPgText(orderID)
	snap.ConfirmedAt = ptrFromPgTimestamptz(confirmedAt)
	snap.CanceledAt = ptrFromPgTimestamptz(canceledAt)
	snap.CompletedAt = ptrFromPgTimestamptz(completedAt)
	snap.CancelReason = stringFromPgText(cancelReason)

	return snap, nil
}

// marshalNullable encodes v as JSON, or returns nil for a nil pointer so the
// column is stored as NULL.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
