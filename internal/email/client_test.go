package email

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/mailgroups/internal/config"
	"github.com/mixelka/mailgroups/pkg/models"
)

// The memory backend has a single user "username" / "password" whose INBOX
// already holds one message dated at backend creation.
const (
	testUser     = "username"
	testPassword = "password"
)

type plainOpener struct{}

func (plainOpener) Decrypt(s string) (string, error) { return s, nil }

func startIMAPServer(t *testing.T) (host string, port int) {
	t.Helper()

	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = s.Serve(listener)
	}()
	t.Cleanup(func() { _ = s.Close() })

	h, p, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	port, err = strconv.Atoi(p)
	require.NoError(t, err)
	return h, port
}

func appendMessage(t *testing.T, addr string, date time.Time, subject, body string) {
	t.Helper()

	c, err := imapclient.Dial(addr)
	require.NoError(t, err)
	defer c.Logout()
	require.NoError(t, c.Login(testUser, testPassword))

	msg := "From: Alice <alice@foo.com>\r\n" +
		"To: ops@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + body + "\r\n"
	require.NoError(t, c.Append("INBOX", nil, date, strings.NewReader(msg)))
}

func testDialer() *IMAPDialer {
	cfg := &config.Config{
		IMAPDialTimeout: 5 * time.Second,
		IMAPAuthTimeout: 5 * time.Second,
	}
	return NewIMAPDialer(cfg, plainOpener{}, discardLogger())
}

func TestIMAPFetchSince(t *testing.T) {
	host, port := startIMAPServer(t)
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	appendMessage(t, addr, time.Date(2020, 1, 10, 8, 0, 0, 0, time.UTC), "Old news", "ancient")
	appendMessage(t, addr, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), "Update #SBS: Atlas", "shipped")
	appendMessage(t, addr, time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC), "Weekly Sync", "notes")

	account := &models.EmailAccount{ID: 1, Email: testUser, Password: testPassword, Host: host, Port: port, TLS: false}

	ctx := context.Background()
	mb, err := testDialer().Dial(ctx, account)
	require.NoError(t, err)
	defer mb.Close()

	raws, err := mb.FetchSince(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	parser := NewParser()
	bySubject := map[string]RawMessage{}
	for _, raw := range raws {
		msg, err := parser.Parse(account.ID, raw)
		require.NoError(t, err)
		bySubject[msg.Subject] = raw
	}

	assert.NotContains(t, bySubject, "Old news")
	require.Contains(t, bySubject, "Update #SBS: Atlas")
	require.Contains(t, bySubject, "Weekly Sync")

	atlas := bySubject["Update #SBS: Atlas"]
	assert.NotZero(t, atlas.UID)
	assert.True(t, atlas.Date.Equal(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)))
	assert.Contains(t, string(atlas.Body), "shipped")
}

func TestIMAPSyncIntoStore(t *testing.T) {
	host, port := startIMAPServer(t)
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	appendMessage(t, addr, time.Now().Add(-time.Hour), "Fresh", "hello")

	db, account := newSyncFixture(t)
	account.Email = testUser
	account.Password = testPassword
	account.Host = host
	account.Port = port
	account.TLS = false

	syncer := NewSyncer(testDialer(), db, 24*time.Hour, discardLogger())

	first, err := syncer.Sync(context.Background(), account)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first.Inserted, 1)

	second, err := syncer.Sync(context.Background(), account)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
}

func TestIMAPTestConnection(t *testing.T) {
	host, port := startIMAPServer(t)
	d := testDialer()
	ctx := context.Background()

	account := &models.EmailAccount{Email: testUser, Host: host, Port: port}
	assert.NoError(t, d.TestConnection(ctx, account, testPassword))
	assert.Error(t, d.TestConnection(ctx, account, "wrong"))

	unreachable := &models.EmailAccount{Email: testUser, Host: "127.0.0.1", Port: 1}
	assert.Error(t, d.TestConnection(ctx, unreachable, testPassword))
}

func TestResolveIMAPHost(t *testing.T) {
	host, err := ResolveIMAPHost("someone@Gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "imap.gmail.com", host)

	_, err = ResolveIMAPHost("not-an-address")
	assert.Error(t, err)

	assert.Equal(t, "foo.com", GetDomainFromEmail("a@FOO.com"))
	assert.Empty(t, GetDomainFromEmail("a@"))
}
