package models

import (
	"fmt"
	"time"
)

// DefaultSubject is stored for messages without a Subject header
const DefaultSubject = "No Subject"

// EmailMessage represents a synced email message. Stored messages are never updated.
type EmailMessage struct {
	ID        string    `db:"message_id"` // <accountID-uid>, see MessageKey
	AccountID int64     `db:"account_id"`
	UID       uint32    `db:"uid"`
	Subject   string    `db:"subject"`
	From      string    `db:"from_addr"`
	To        string    `db:"to_addr"`
	Date      time.Time `db:"date"`
	Snippet   string    `db:"snippet"`
	BodyText  string    `db:"body_text"`
	CreatedAt time.Time `db:"created_at"`
}

// MessageKey builds the store-wide unique identifier of a message from the
// owning account and the mailbox-assigned UID.
func MessageKey(accountID int64, uid uint32) string {
	return fmt.Sprintf("<%d-%d>", accountID, uid)
}
