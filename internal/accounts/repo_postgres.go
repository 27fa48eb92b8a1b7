package accounts

import (
	"context"
	"database/sql"
	"errors"

	"phoneb/pkg/utils"
)

// PostgresRepo persists accounts in the twilio_accounts table.
//
// NOTE: assumed schema:
// twilio_accounts (id, user_id, account_name, account_sid, auth_token,
//                  app_sid, phone_number, is_default, created_at, updated_at)
// with UNIQUE (user_id) WHERE is_default — see the duplicate-owner note in
// DESIGN.md for why account_sid is intentionally NOT unique.
type PostgresRepo struct {
	db *sql.DB

	// cipher seals auth_token at rest. Nil means plaintext storage and is
	// only acceptable in local/dev.
	cipher *Cipher
}

func NewPostgresRepo(db *sql.DB, cipher *Cipher) *PostgresRepo {
	return &PostgresRepo{db: db, cipher: cipher}
}

func (r *PostgresRepo) sealToken(tok string) (string, error) {
	if r.cipher == nil || tok == "" {
		return tok, nil
	}
	return r.cipher.Seal(tok)
}

func (r *PostgresRepo) openToken(tok string) (string, error) {
	if r.cipher == nil || tok == "" {
		return tok, nil
	}
	return r.cipher.Open(tok)
}

func (r *PostgresRepo) Create(ctx context.Context, a Account) error {
	tok, err := r.sealToken(a.AuthToken)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO twilio_accounts (
  id, user_id, account_name, account_sid, auth_token, app_sid, phone_number, is_default, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	args := []any{
		a.ID,
		a.UserID,
		a.Name,
		a.AccountSID,
		tok,
		a.AppSID,
		a.PhoneNumber,
		a.IsDefault,
		a.CreatedAt,
		a.UpdatedAt,
	}
	if !a.IsDefault {
		_, err = r.db.ExecContext(ctx, q, args...)
		return err
	}
	// Inserting a new default must clear the previous one in the same
	// transaction, or the insert collides with the partial unique index.
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const clear = `UPDATE twilio_accounts SET is_default = FALSE WHERE user_id = $1 AND is_default`
		if _, err := tx.ExecContext(ctx, clear, a.UserID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, q, args...)
		return err
	})
}

const accountColumns = `
id, user_id, account_name, account_sid, auth_token, app_sid, phone_number, is_default, created_at, updated_at
`

func (r *PostgresRepo) scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var a Account
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.AccountSID,
		&a.AuthToken,
		&a.AppSID,
		&a.PhoneNumber,
		&a.IsDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Account{}, err
	}
	tok, err := r.openToken(a.AuthToken)
	if err != nil {
		return Account{}, err
	}
	a.AuthToken = tok
	return a, nil
}

func (r *PostgresRepo) Get(ctx context.Context, userID, accountID string) (Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM twilio_accounts
WHERE user_id = $1 AND id = $2
`
	a, err := r.scanAccount(r.db.QueryRowContext(ctx, q, userID, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM twilio_accounts
WHERE user_id = $1
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		a, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Update(ctx context.Context, a Account) error {
	tok, err := r.sealToken(a.AuthToken)
	if err != nil {
		return err
	}
	const q = `
UPDATE twilio_accounts
SET account_name = $3, account_sid = $4, auth_token = $5, app_sid = $6,
    phone_number = $7, is_default = $8, updated_at = $9
WHERE user_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		a.UserID,
		a.ID,
		a.Name,
		a.AccountSID,
		tok,
		a.AppSID,
		a.PhoneNumber,
		a.IsDefault,
		a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *PostgresRepo) Delete(ctx context.Context, userID, accountID string) error {
	const q = `DELETE FROM twilio_accounts WHERE user_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, userID, accountID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *PostgresRepo) SetDefault(ctx context.Context, userID, accountID string) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const clear = `UPDATE twilio_accounts SET is_default = FALSE WHERE user_id = $1 AND id <> $2`
		if _, err := tx.ExecContext(ctx, clear, userID, accountID); err != nil {
			return err
		}
		const set = `UPDATE twilio_accounts SET is_default = TRUE WHERE user_id = $1 AND id = $2`
		res, err := tx.ExecContext(ctx, set, userID, accountID)
		if err != nil {
			return err
		}
		return mustAffect(res)
	})
}

func (r *PostgresRepo) SetAppSID(ctx context.Context, userID, accountID, appSID string) error {
	const q = `UPDATE twilio_accounts SET app_sid = $3, updated_at = NOW() WHERE user_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, userID, accountID, appSID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *PostgresRepo) FindUserIDsByAccountSID(ctx context.Context, accountSID string) ([]string, error) {
	const q = `SELECT DISTINCT user_id FROM twilio_accounts WHERE account_sid = $1`
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

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
