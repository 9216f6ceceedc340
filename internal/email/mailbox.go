package email

import (
	"context"
	"fmt"
	"time"

	"github.com/mixelka/mailgroups/pkg/models"
)

// RawMessage is one message as fetched from the remote mailbox
type RawMessage struct {
	UID    uint32
	Header []byte    // BODY[HEADER], including the terminating blank line
	Body   []byte    // BODY[TEXT]
	Date   time.Time // INTERNALDATE
}

// Mailbox is an open, authenticated session on the account's INBOX
type Mailbox interface {
	// FetchSince returns every message with an internal date on or after since.
	// Messages are never marked as seen.
	FetchSince(ctx context.Context, since time.Time) ([]RawMessage, error)
	Close() error
}

// Dialer opens mailbox sessions for accounts
type Dialer interface {
	Dial(ctx context.Context, account *models.EmailAccount) (Mailbox, error)
}

// AccountError is a failure scoped to a single account: connection,
// authentication or fetch. It never affects other accounts.
type AccountError struct {
	AccountID int64
	Email     string
	Err       error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("account %s: %v", e.Email, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}
