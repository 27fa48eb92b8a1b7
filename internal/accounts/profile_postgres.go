package accounts

import (
	"context"
	"database/sql"
	"errors"
)

// ProfilePostgresRepo reads the legacy per-user credential columns on the
// profiles table. Write support is limited to the app_sid column; everything
// else on profiles is managed by the account-migration path, not this service.
type ProfilePostgresRepo struct {
	db     *sql.DB
	cipher *Cipher
}

func NewProfilePostgresRepo(db *sql.DB, cipher *Cipher) *ProfilePostgresRepo {
	return &ProfilePostgresRepo{db: db, cipher: cipher}
}

func (r *ProfilePostgresRepo) Get(ctx context.Context, userID string) (Profile, bool, error) {
	const q = `
SELECT id, twilio_account_sid, twilio_auth_token, twilio_app_sid, twilio_phone_number
FROM profiles
WHERE id = $1
`
	var p Profile
	var sid, tok, app, num sql.NullString
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&p.UserID, &sid, &tok, &app, &num)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	p.AccountSID = sid.String
	p.AuthToken = tok.String
	p.AppSID = app.String
	p.PhoneNumber = num.String

	if r.cipher != nil && p.AuthToken != "" {
		// Legacy rows may predate at-rest encryption; pass raw values through.
		if plain, err := r.cipher.Open(p.AuthToken); err == nil {
			p.AuthToken = plain
		}
	}
	return p, true, nil
}

func (r *ProfilePostgresRepo) SetAppSID(ctx context.Context, userID, appSID string) error {
	const q = `UPDATE profiles SET twilio_app_sid = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, userID, appSID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *ProfilePostgresRepo) FindUserIDsByAccountSID(ctx context.Context, accountSID string) ([]string, error) {
	const q = `SELECT id FROM profiles WHERE twilio_account_sid = $1`
	rows, err := r.db.QueryContext(ctx, q, accountSID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
