package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// pgTextFromString creates a pgtype.Text that is NULL for the empty string.
func pgTextFromString(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// stringFromPgText returns the text value, or "" for NULL.
func stringFromPgText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// pgTimestamptzFromPtr creates a pgtype.Timestamptz that is NULL for nil.
func pgTimestamptzFromPtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// ptrFromPgTimestamptz returns a pointer to the time, or nil for NULL.
func ptrFromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// pgUUIDFromString parses a session ID. ok is false for IDs that cannot be
// stored in a UUID column.
func pgUUIDFromString(id string) (pgtype.UUID, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: u, Valid: true}, true
}

// stringFromPgUUID formats a UUID column.
func stringFromPgUUID(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
