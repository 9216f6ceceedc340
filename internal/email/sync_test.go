package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/mailgroups/internal/database"
	"github.com/mixelka/mailgroups/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMailbox struct {
	messages []RawMessage
	err      error
	sinces   []time.Time
	closed   bool
}

func (m *fakeMailbox) FetchSince(_ context.Context, since time.Time) ([]RawMessage, error) {
	m.sinces = append(m.sinces, since)
	if m.err != nil {
		return nil, m.err
	}
	var out []RawMessage
	for _, raw := range m.messages {
		if !raw.Date.Before(since) {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (m *fakeMailbox) Close() error {
	m.closed = true
	return nil
}

type fakeDialer struct {
	mailboxes map[int64]*fakeMailbox
	err       error
}

func (d *fakeDialer) Dial(_ context.Context, account *models.EmailAccount) (Mailbox, error) {
	if d.err != nil {
		return nil, d.err
	}
	mb, ok := d.mailboxes[account.ID]
	if !ok {
		return nil, fmt.Errorf("no mailbox for %d", account.ID)
	}
	mb.closed = false
	return mb, nil
}

func newSyncFixture(t *testing.T) (*database.DB, *models.EmailAccount) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	account := &models.EmailAccount{Email: "ops@example.com", Password: "x", Host: "imap.example.com", Port: 993, Enabled: true}
	require.NoError(t, db.CreateAccount(context.Background(), account))
	return db, account
}

func plainMessage(uid uint32, date time.Time, subject string) RawMessage {
	return rawMessage(uid, date,
		fmt.Sprintf("From: alice@foo.com\nTo: ops@example.com\nSubject: %s\n", subject),
		"body of "+subject+"\n")
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, account := newSyncFixture(t)

	base := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	mb := &fakeMailbox{messages: []RawMessage{
		plainMessage(1, base, "one"),
		plainMessage(2, base.Add(time.Hour), "two"),
		plainMessage(3, base.Add(2*time.Hour), "three"),
	}}
	syncer := NewSyncer(&fakeDialer{mailboxes: map[int64]*fakeMailbox{account.ID: mb}}, db, 90*24*time.Hour, discardLogger())

	first, err := syncer.Sync(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	assert.True(t, mb.closed)

	second, err := syncer.Sync(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 0, second.Failed)

	count, err := db.CountMessages(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSyncCursor(t *testing.T) {
	ctx := context.Background()
	db, account := newSyncFixture(t)

	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	mb := &fakeMailbox{}
	syncer := NewSyncer(&fakeDialer{mailboxes: map[int64]*fakeMailbox{account.ID: mb}}, db, 90*24*time.Hour, discardLogger())
	syncer.now = func() time.Time { return now }

	// No stored messages: default lookback
	cursor, err := syncer.Cursor(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, cursor.Equal(now.Add(-90*24*time.Hour)))

	var latest time.Time
	for i := 1; i <= 3; i++ {
		d := now.Add(-time.Duration(10*i) * time.Hour)
		if i == 2 {
			d = now.Add(-time.Hour)
		}
		if d.After(latest) {
			latest = d
		}
		mb.messages = append(mb.messages, plainMessage(uint32(i), d, fmt.Sprintf("m%d", i)))

		_, err := syncer.Sync(ctx, account)
		require.NoError(t, err)

		cursor, err := syncer.Cursor(ctx, account.ID)
		require.NoError(t, err)
		assert.True(t, cursor.Equal(latest), "after sync %d cursor %s, want %s", i, cursor, latest)
	}

	// Every fetch started at the cursor of the previous run
	require.Len(t, mb.sinces, 3)
	assert.True(t, mb.sinces[0].Equal(now.Add(-90*24*time.Hour)))
	assert.True(t, mb.sinces[2].Equal(now.Add(-time.Hour)))
}

func TestSyncSkipsUnparsableMessage(t *testing.T) {
	ctx := context.Background()
	db, account := newSyncFixture(t)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	mb := &fakeMailbox{messages: []RawMessage{
		plainMessage(1, base, "one"),
		plainMessage(2, base, "two"),
		rawMessage(3, base, "garbage line without colon\n", "body\n"),
		plainMessage(4, base, "four"),
		plainMessage(5, base, "five"),
	}}
	syncer := NewSyncer(&fakeDialer{mailboxes: map[int64]*fakeMailbox{account.ID: mb}}, db, 24*time.Hour, discardLogger())

	result, err := syncer.Sync(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{AccountID: account.ID, Fetched: 5, Inserted: 4, Failed: 1}, result)

	count, err := db.CountMessages(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	_, err = db.GetMessageByID(ctx, models.MessageKey(account.ID, 3))
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestSyncAccountErrors(t *testing.T) {
	ctx := context.Background()
	db, account := newSyncFixture(t)
	boom := errors.New("connection refused")

	tests := []struct {
		name   string
		dialer *fakeDialer
	}{
		{name: "dial", dialer: &fakeDialer{err: boom}},
		{name: "fetch", dialer: &fakeDialer{mailboxes: map[int64]*fakeMailbox{account.ID: {err: boom}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := NewSyncer(tt.dialer, db, time.Hour, discardLogger())
			_, err := syncer.Sync(ctx, account)

			var accErr *AccountError
			require.ErrorAs(t, err, &accErr)
			assert.Equal(t, account.ID, accErr.AccountID)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), "ops@example.com")
		})
	}
}
