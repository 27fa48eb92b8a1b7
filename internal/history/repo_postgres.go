package history

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo persists history in the call_history and message_history
// tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) AppendCall(ctx context.Context, e CallEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_history
			(id, user_id, phone_number, contact_name, direction, status,
			 duration_seconds, twilio_account_sid, twilio_call_sid, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.UserID, e.PhoneNumber, nullable(e.ContactName), string(e.Direction),
		e.Status, e.DurationSeconds, nullable(e.AccountSID), nullable(e.CallSID), e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append call history: %w", err)
	}
	return nil
}

func (r *PostgresRepo) AppendMessage(ctx context.Context, e MessageEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_history
			(id, user_id, phone_number, contact_name, content, direction,
			 twilio_account_sid, twilio_message_sid, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID, e.PhoneNumber, nullable(e.ContactName), e.Content,
		string(e.Direction), nullable(e.AccountSID), nullable(e.MessageSID), e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append message history: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListCalls(ctx context.Context, userID string, limit int) ([]CallEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, phone_number, contact_name, direction, status,
		       duration_seconds, twilio_account_sid, twilio_call_sid, timestamp
		FROM call_history
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list call history: %w", err)
	}
	defer rows.Close()

	var out []CallEntry
	for rows.Next() {
		var (
			e                CallEntry
			name, acct, call sql.NullString
			direction        string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.PhoneNumber, &name, &direction,
			&e.Status, &e.DurationSeconds, &acct, &call, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan call history: %w", err)
		}
		e.ContactName = name.String
		e.Direction = Direction(direction)
		e.AccountSID = acct.String
		e.CallSID = call.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListMessages(ctx context.Context, userID string, limit int) ([]MessageEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, phone_number, contact_name, content, direction,
		       twilio_account_sid, twilio_message_sid, timestamp
		FROM message_history
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list message history: %w", err)
	}
	defer rows.Close()

	var out []MessageEntry
	for rows.Next() {
		var (
			e               MessageEntry
			name, acct, msg sql.NullString
			direction       string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.PhoneNumber, &name, &e.Content,
			&direction, &acct, &msg, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message history: %w", err)
		}
		e.ContactName = name.String
		e.Direction = Direction(direction)
		e.AccountSID = acct.String
		e.MessageSID = msg.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
