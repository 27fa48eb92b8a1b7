package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepo persists contacts in the contacts table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Touch(ctx context.Context, userID, phoneNumber, contactType string, at time.Time) error {
	if userID == "" || phoneNumber == "" {
		return fmt.Errorf("%w: user id and phone number are required", ErrInvalidArgument)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, user_id, phone_number, contact_type, last_contacted, created_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, phone_number)
		DO UPDATE SET contact_type = EXCLUDED.contact_type,
		              last_contacted = EXCLUDED.last_contacted`,
		uuid.NewString(), userID, phoneNumber, contactType, at,
	)
	if err != nil {
		return fmt.Errorf("touch contact: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, userID, phoneNumber string) (Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, phone_number, name, company, email, notes,
		       contact_type, favorite, last_contacted, created_at
		FROM contacts
		WHERE user_id = $1 AND phone_number = $2`,
		userID, phoneNumber,
	)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, phone_number, name, company, email, notes,
		       contact_type, favorite, last_contacted, created_at
		FROM contacts
		WHERE user_id = $1
		ORDER BY last_contacted DESC NULLS LAST, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContact(row interface{ Scan(...any) error }) (Contact, error) {
	var (
		c             Contact
		name, company sql.NullString
		email, notes  sql.NullString
		contactType   sql.NullString
		lastContacted sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.PhoneNumber, &name, &company, &email, &notes,
		&contactType, &c.Favorite, &lastContacted, &c.CreatedAt)
	if err != nil {
		return Contact{}, err
	}
	c.Name = name.String
	c.Company = company.String
	c.Email = email.String
	c.Notes = notes.String
	c.ContactType = contactType.String
	if lastContacted.Valid {
		t := lastContacted.Time
		c.LastContacted = &t
	}
	return c, nil
}
