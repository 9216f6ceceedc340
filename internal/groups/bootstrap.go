package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/mixelka/mailgroups/internal/database"
	"github.com/mixelka/mailgroups/internal/email"
	"github.com/mixelka/mailgroups/pkg/models"
)

// BootstrapAccount is an account configured through the environment
type BootstrapAccount struct {
	Email    string
	Password string
	Host     string // resolved from the address domain when empty
	Port     int
	TLS      bool
}

// EnsureBootstrapAccount stores acc when no account exists yet. It reports
// whether an account was created.
func (s *Service) EnsureBootstrapAccount(ctx context.Context, acc BootstrapAccount) (bool, error) {
	count, err := s.db.CountAccounts(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	host := acc.Host
	if host == "" {
		if host, err = email.ResolveIMAPHost(acc.Email); err != nil {
			return false, fmt.Errorf("failed to resolve IMAP host: %w", err)
		}
	}

	port := acc.Port
	if port == 0 {
		port = 993
	}

	sealed, err := s.sealer.Encrypt(acc.Password)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt password: %w", err)
	}

	account := &models.EmailAccount{
		Email:    acc.Email,
		Password: sealed,
		Host:     host,
		Port:     port,
		TLS:      acc.TLS,
		Enabled:  true,
	}
	if err := s.db.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("created bootstrap account", "account_id", account.ID, "email", account.Email, "host", host)
	return true, nil
}
