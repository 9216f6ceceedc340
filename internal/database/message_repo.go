package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mixelka/mailgroups/pkg/models"
)

const messageColumns = `message_id, account_id, uid, subject, from_addr, to_addr, date, snippet, body_text, created_at`

// CreateMessage inserts a new message. Returns ErrAlreadyExists if a message
// with the same id is already stored; stored messages are never overwritten.
func (db *DB) CreateMessage(ctx context.Context, msg *models.EmailMessage) error {
	query := `
		INSERT OR IGNORE INTO email_messages (message_id, account_id, uid, subject, from_addr, to_addr, date, snippet, body_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	date := msg.Date.UTC().Truncate(time.Second)
	result, err := db.ExecContext(ctx, query,
		msg.ID,
		msg.AccountID,
		msg.UID,
		msg.Subject,
		msg.From,
		msg.To,
		date,
		msg.Snippet,
		msg.BodyText,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	// Check if row was actually inserted (not ignored due to duplicate)
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	msg.Date = date
	msg.CreatedAt = now
	return nil
}

// MessageExists reports whether a message with the given id is stored
func (db *DB) MessageExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM email_messages WHERE message_id = ?)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check message: %w", err)
	}
	return exists, nil
}

// GetMessageByID returns a message by its id
func (db *DB) GetMessageByID(ctx context.Context, id string) (*models.EmailMessage, error) {
	var msg models.EmailMessage
	query := `SELECT ` + messageColumns + ` FROM email_messages WHERE message_id = ?`
	err := db.GetContext(ctx, &msg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// LatestMessageDate returns the date of the most recent stored message of an
// account. ok is false when the account has no messages.
func (db *DB) LatestMessageDate(ctx context.Context, accountID int64) (date time.Time, ok bool, err error) {
	// Selecting the column (not MAX) keeps the DATETIME decltype so the driver returns time.Time
	query := `SELECT date FROM email_messages WHERE account_id = ? ORDER BY date DESC LIMIT 1`
	err = db.GetContext(ctx, &date, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get latest message date: %w", err)
	}
	return date, true, nil
}

// GetMessagesForAccounts returns all messages of the given accounts, most recent first
func (db *DB) GetMessagesForAccounts(ctx context.Context, accountIDs []int64) ([]*models.EmailMessage, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+messageColumns+` FROM email_messages
		WHERE account_id IN (?)
		ORDER BY date DESC, message_id
	`, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build messages query: %w", err)
	}

	var messages []*models.EmailMessage
	if err := db.SelectContext(ctx, &messages, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// CountMessages returns the number of stored messages of an account
func (db *DB) CountMessages(ctx context.Context, accountID int64) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM email_messages WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
