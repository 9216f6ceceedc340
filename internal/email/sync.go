package email

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mixelka/mailgroups/internal/database"
	"github.com/mixelka/mailgroups/pkg/models"
)

// Store is the part of the message store the sync engine writes to
type Store interface {
	LatestMessageDate(ctx context.Context, accountID int64) (time.Time, bool, error)
	MessageExists(ctx context.Context, id string) (bool, error)
	CreateMessage(ctx context.Context, msg *models.EmailMessage) error
}

// SyncResult summarizes one sync run of an account
type SyncResult struct {
	AccountID int64
	Fetched   int // messages returned by the mailbox
	Inserted  int // newly stored
	Skipped   int // already stored
	Failed    int // unparsable or failed to store
}

// Syncer pulls new messages of an account into the store
type Syncer struct {
	dialer   Dialer
	store    Store
	parser   *Parser
	lookback time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewSyncer creates a new sync engine. lookback bounds the first sync of
// an account with no stored messages.
func NewSyncer(dialer Dialer, store Store, lookback time.Duration, logger *slog.Logger) *Syncer {
	return &Syncer{
		dialer:   dialer,
		store:    store,
		parser:   NewParser(),
		lookback: lookback,
		now:      time.Now,
		logger:   logger.With("component", "sync"),
	}
}

// Cursor returns the date from which the account is fetched: its most
// recent stored message, or now minus the lookback window.
func (s *Syncer) Cursor(ctx context.Context, accountID int64) (time.Time, error) {
	latest, ok, err := s.store.LatestMessageDate(ctx, accountID)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return s.now().Add(-s.lookback).UTC(), nil
	}
	return latest, nil
}

// Sync fetches messages since the account cursor and stores the ones not
// stored yet. Connection and fetch failures are returned as *AccountError;
// a message that cannot be parsed or stored is logged and skipped.
func (s *Syncer) Sync(ctx context.Context, account *models.EmailAccount) (SyncResult, error) {
	result := SyncResult{AccountID: account.ID}
	logger := s.logger.With("account_id", account.ID, "email", account.Email)

	accountErr := func(err error) error {
		return &AccountError{AccountID: account.ID, Email: account.Email, Err: err}
	}

	since, err := s.Cursor(ctx, account.ID)
	if err != nil {
		return result, accountErr(err)
	}

	mailbox, err := s.dialer.Dial(ctx, account)
	if err != nil {
		return result, accountErr(err)
	}
	defer mailbox.Close()

	raws, err := mailbox.FetchSince(ctx, since)
	if err != nil {
		return result, accountErr(err)
	}
	result.Fetched = len(raws)
	logger.Debug("fetched messages", "since", since, "count", len(raws))

	for _, raw := range raws {
		if ctx.Err() != nil {
			return result, accountErr(ctx.Err())
		}

		id := models.MessageKey(account.ID, raw.UID)

		// Skip known ids before parsing
		exists, err := s.store.MessageExists(ctx, id)
		if err != nil {
			logger.Warn("failed to check message", "uid", raw.UID, "error", err)
			result.Failed++
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		msg, err := s.parser.Parse(account.ID, raw)
		if err != nil {
			logger.Warn("skipping unparsable message", "uid", raw.UID, "error", err)
			result.Failed++
			continue
		}

		if err := s.store.CreateMessage(ctx, msg); err != nil {
			if errors.Is(err, database.ErrAlreadyExists) {
				result.Skipped++
				continue
			}
			logger.Warn("failed to store message", "uid", raw.UID, "error", err)
			result.Failed++
			continue
		}
		result.Inserted++
	}

	logger.Info("sync finished",
		"fetched", result.Fetched,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}
