// Package groups turns synced mailboxes into per-account project groups.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mixelka/mailgroups/internal/classifier"
	"github.com/mixelka/mailgroups/internal/company"
	"github.com/mixelka/mailgroups/internal/database"
	"github.com/mixelka/mailgroups/internal/email"
	"github.com/mixelka/mailgroups/internal/summary"
	"github.com/mixelka/mailgroups/pkg/models"
)

// AccountSyncer syncs one account into the store
type AccountSyncer interface {
	Sync(ctx context.Context, account *models.EmailAccount) (email.SyncResult, error)
}

// ConnectionTester checks account credentials against the remote mailbox
type ConnectionTester interface {
	TestConnection(ctx context.Context, account *models.EmailAccount, password string) error
}

// PasswordSealer encrypts account passwords before they are stored
type PasswordSealer interface {
	Encrypt(plaintext string) (string, error)
}

// SyncFailureFunc is notified when a background sync of an account fails
type SyncFailureFunc func(account *models.EmailAccount, err error)

// Service orchestrates sync, classification and grouping
type Service struct {
	db         *database.DB
	syncer     AccountSyncer
	tester     ConnectionTester
	sealer     PasswordSealer
	classifier *classifier.Classifier
	generator  summary.Generator
	launcher   Launcher
	language   string
	logger     *slog.Logger

	mu        sync.Mutex
	inFlight  map[int64]bool
	lastErr   map[int64]string
	onFailure SyncFailureFunc
}

// ServiceDeps dependencies for creating a service
type ServiceDeps struct {
	DB              *database.DB
	Syncer          AccountSyncer
	Tester          ConnectionTester
	Sealer          PasswordSealer
	Classifier      *classifier.Classifier
	Generator       summary.Generator
	Launcher        Launcher // defaults to InlineLauncher
	SummaryLanguage string
	Logger          *slog.Logger
}

// NewService creates a new service
func NewService(deps ServiceDeps) *Service {
	launcher := deps.Launcher
	if launcher == nil {
		launcher = InlineLauncher{}
	}
	language := deps.SummaryLanguage
	if language == "" {
		language = "English"
	}

	return &Service{
		db:         deps.DB,
		syncer:     deps.Syncer,
		tester:     deps.Tester,
		sealer:     deps.Sealer,
		classifier: deps.Classifier,
		generator:  deps.Generator,
		launcher:   launcher,
		language:   language,
		logger:     deps.Logger.With("component", "groups"),
		inFlight:   make(map[int64]bool),
		lastErr:    make(map[int64]string),
	}
}

// OnSyncFailure sets the handler for background sync failures
func (s *Service) OnSyncFailure(fn SyncFailureFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFailure = fn
}

// Refresh starts a background sync of every enabled account and returns the
// groups built from the messages already committed. It does not wait for
// the syncs it starts. A failing account is reported in its own result and
// never affects the others.
func (s *Service) Refresh(ctx context.Context) ([]models.AccountResult, error) {
	logger := s.logger.With("run_id", uuid.NewString())

	accounts, err := s.db.GetEnabledAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	for _, account := range accounts {
		s.launchSync(logger, account)
	}

	results, err := s.buildResults(ctx, accounts)
	if err != nil {
		return nil, err
	}
	logger.Debug("refresh served", "accounts", len(accounts))
	return results, nil
}

// launchSync hands a sync of account to the launcher unless one is already running
func (s *Service) launchSync(logger *slog.Logger, account *models.EmailAccount) {
	s.mu.Lock()
	if s.inFlight[account.ID] {
		s.mu.Unlock()
		logger.Debug("sync already running", "account_id", account.ID)
		return
	}
	s.inFlight[account.ID] = true
	s.mu.Unlock()

	launched := s.launcher.Launch(func(ctx context.Context) {
		_, err := s.syncer.Sync(ctx, account)
		canceled := errors.Is(err, context.Canceled)

		s.mu.Lock()
		delete(s.inFlight, account.ID)
		switch {
		case err == nil:
			delete(s.lastErr, account.ID)
		case !canceled:
			s.lastErr[account.ID] = err.Error()
		}
		onFailure := s.onFailure
		s.mu.Unlock()

		if canceled {
			logger.Info("sync canceled", "account_id", account.ID, "email", account.Email)
			return
		}
		if err != nil {
			logger.Error("sync failed", "account_id", account.ID, "email", account.Email, "error", err)
			if onFailure != nil {
				onFailure(account, err)
			}
		}
	})
	if !launched {
		s.mu.Lock()
		delete(s.inFlight, account.ID)
		s.mu.Unlock()
		logger.Debug("sync not launched, shutting down", "account_id", account.ID)
	}
}

// lastErrors returns a snapshot of the last sync error per account
func (s *Service) lastErrors() map[int64]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]string, len(s.lastErr))
	for id, e := range s.lastErr {
		out[id] = e
	}
	return out
}

// classifiedMessages loads the committed messages of accounts and classifies
// them in one pass
func (s *Service) classifiedMessages(ctx context.Context, accounts []*models.EmailAccount) ([]*models.EmailMessage, *classifier.Pass, error) {
	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}

	messages, err := s.db.GetMessagesForAccounts(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}

	pass, err := s.classifier.Prepare(ctx, messages)
	if err != nil {
		return nil, nil, err
	}
	return messages, pass, nil
}

// tagMessages returns the committed messages of enabled accounts classified
// into tag
func (s *Service) tagMessages(ctx context.Context, tag string) ([]*models.EmailMessage, error) {
	accounts, err := s.db.GetEnabledAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	messages, pass, err := s.classifiedMessages(ctx, accounts)
	if err != nil {
		return nil, err
	}

	var selected []*models.EmailMessage
	for _, msg := range messages {
		if pass.Classify(msg).Tag == tag {
			selected = append(selected, msg)
		}
	}
	return selected, nil
}

// Participants returns the people taking part in the group tag, bucketed by
// company
func (s *Service) Participants(ctx context.Context, tag string) ([]company.ParticipantGroup, error) {
	messages, err := s.tagMessages(ctx, tag)
	if err != nil {
		return nil, err
	}
	companies, err := s.db.Companies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}
	return company.NewResolver(companies).Participants(messages), nil
}

func (s *Service) buildResults(ctx context.Context, accounts []*models.EmailAccount) ([]models.AccountResult, error) {
	messages, pass, err := s.classifiedMessages(ctx, accounts)
	if err != nil {
		return nil, err
	}

	companies, err := s.db.Companies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}
	configs, err := s.db.GroupConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load group configs: %w", err)
	}
	resolver := company.NewResolver(companies)

	// account -> tag -> messages
	buckets := make(map[int64]map[string][]*models.EmailMessage, len(accounts))
	for _, msg := range messages {
		r := pass.Classify(msg)
		if !r.Visible() {
			continue
		}
		byTag := buckets[msg.AccountID]
		if byTag == nil {
			byTag = map[string][]*models.EmailMessage{}
			buckets[msg.AccountID] = byTag
		}
		byTag[r.Tag] = append(byTag[r.Tag], msg)
	}

	errs := s.lastErrors()

	ordered := make([]*models.EmailAccount, len(accounts))
	copy(ordered, accounts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	results := make([]models.AccountResult, 0, len(ordered))
	for _, account := range ordered {
		groups := make([]models.Group, 0, len(buckets[account.ID]))
		for tag, msgs := range buckets[account.ID] {
			sortMessages(msgs)
			groups = append(groups, models.Group{
				Tag:         tag,
				Company:     resolver.Resolve(msgs),
				Responsible: configs[tag].Responsible,
				Messages:    msgs,
			})
		}
		sortGroups(groups)

		result := models.AccountResult{Account: models.AccountInfo{ID: account.ID, Email: account.Email}}
		if reason, failed := errs[account.ID]; failed {
			result.Outcome = models.SyncFailed{Reason: reason, Groups: groups}
		} else {
			result.Outcome = models.Synced{Groups: groups}
		}
		results = append(results, result)
	}
	return results, nil
}

// sortMessages orders messages most recent first, ties by id
func sortMessages(msgs []*models.EmailMessage) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].Date.Equal(msgs[j].Date) {
			return msgs[i].Date.After(msgs[j].Date)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// sortGroups orders groups by their most recent message, ties by tag.
// Messages must already be sorted.
func sortGroups(groups []models.Group) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Messages[0].Date, groups[j].Messages[0].Date
		if !a.Equal(b) {
			return a.After(b)
		}
		return groups[i].Tag < groups[j].Tag
	})
}

// Unfollow stops surfacing tag. With deleteData the learned subjects of the
// tag are purged too; stored messages are never deleted.
func (s *Service) Unfollow(ctx context.Context, tag string, deleteData bool) error {
	if tag == "" {
		return errors.New("tag is required")
	}

	n, err := s.db.UnfollowGroup(ctx, tag, deleteData)
	if err != nil {
		return err
	}
	if deleteData {
		s.logger.Info("forgot learned subjects", "group", tag, "count", n)
	}

	s.logger.Info("group unfollowed", "group", tag, "purge", deleteData)
	return nil
}

// TestConnection checks plaintext credentials of an account without storing them
func (s *Service) TestConnection(ctx context.Context, account *models.EmailAccount, password string) error {
	if err := s.tester.TestConnection(ctx, account, password); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	return nil
}
