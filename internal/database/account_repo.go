package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mixelka/mailgroups/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when trying to insert a duplicate record
var ErrAlreadyExists = errors.New("record already exists")

const accountColumns = `id, email, password, host, port, tls, enabled, created_at, updated_at`

// CreateAccount creates a new email account
func (db *DB) CreateAccount(ctx context.Context, account *models.EmailAccount) error {
	query := `
		INSERT OR IGNORE INTO email_accounts (email, password, host, port, tls, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		account.Email,
		account.Password,
		account.Host,
		account.Port,
		account.TLS,
		account.Enabled,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// GetAccountByID returns an account by ID
func (db *DB) GetAccountByID(ctx context.Context, id int64) (*models.EmailAccount, error) {
	var account models.EmailAccount
	query := `SELECT ` + accountColumns + ` FROM email_accounts WHERE id = ?`
	err := db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetEnabledAccounts returns all enabled accounts ordered by id
func (db *DB) GetEnabledAccounts(ctx context.Context) ([]*models.EmailAccount, error) {
	var accounts []*models.EmailAccount
	query := `SELECT ` + accountColumns + ` FROM email_accounts WHERE enabled = true ORDER BY id`
	err := db.SelectContext(ctx, &accounts, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled accounts: %w", err)
	}
	return accounts, nil
}

// CountAccounts returns the number of accounts, enabled or not
func (db *DB) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM email_accounts`); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// SetAccountEnabled enables or disables syncing of an account
func (db *DB) SetAccountEnabled(ctx context.Context, id int64, enabled bool) error {
	query := `UPDATE email_accounts SET enabled = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set account enabled: %w", err)
	}
	return nil
}
