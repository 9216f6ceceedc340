package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mixelka/mailgroups/internal/config"
	"github.com/mixelka/mailgroups/pkg/models"
)

// PasswordOpener decrypts stored account passwords
type PasswordOpener interface {
	Decrypt(encrypted string) (string, error)
}

// IMAPDialer opens IMAP sessions for stored accounts
type IMAPDialer struct {
	config *config.Config
	opener PasswordOpener
	logger *slog.Logger
}

// NewIMAPDialer creates a new IMAP dialer
func NewIMAPDialer(cfg *config.Config, opener PasswordOpener, logger *slog.Logger) *IMAPDialer {
	return &IMAPDialer{
		config: cfg,
		opener: opener,
		logger: logger.With("component", "imap"),
	}
}

func (d *IMAPDialer) clientFor(account *models.EmailAccount, password string) *Client {
	return NewClient(ClientConfig{
		Email:              account.Email,
		Password:           password,
		Server:             account.Address(),
		TLS:                account.TLS,
		InsecureSkipVerify: d.config.IMAPInsecureSkipVerify,
		DialTimeout:        d.config.IMAPDialTimeout,
		CommandTimeout:     d.config.IMAPAuthTimeout,
	}, d.logger)
}

// Dial connects, logs in and selects INBOX read-only
func (d *IMAPDialer) Dial(ctx context.Context, account *models.EmailAccount) (Mailbox, error) {
	password, err := d.opener.Decrypt(account.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt password: %w", err)
	}

	client := d.clientFor(account, password)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	if _, err := client.SelectINBOX(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// TestConnection checks that the given plaintext credentials can log in
// and open INBOX. Nothing is stored.
func (d *IMAPDialer) TestConnection(ctx context.Context, account *models.EmailAccount, password string) error {
	client := d.clientFor(account, password)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.SelectINBOX(ctx); err != nil {
		return err
	}
	return nil
}
