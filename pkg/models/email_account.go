package models

import (
	"strconv"
	"time"
)

// EmailAccount represents a remote mailbox the service syncs from
type EmailAccount struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`    // IMAP login, also the display identity
	Password  string    `db:"password"` // Encrypted password
	Host      string    `db:"host"`
	Port      int       `db:"port"`
	TLS       bool      `db:"tls"`
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Address returns host:port of the IMAP server
func (a *EmailAccount) Address() string {
	port := a.Port
	if port == 0 {
		port = 993
	}
	return a.Host + ":" + strconv.Itoa(port)
}
