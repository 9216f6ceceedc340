package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// ClientConfig configuration for IMAP client
type ClientConfig struct {
	Email              string
	Password           string
	Server             string // host:port
	TLS                bool
	InsecureSkipVerify bool
	DialTimeout        time.Duration
	CommandTimeout     time.Duration
}

// Client IMAP client for a single email account
type Client struct {
	config ClientConfig
	client *client.Client
	logger *slog.Logger
	mu     sync.Mutex
}

var (
	headerSection = &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	textSection = &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.TextSpecifier},
		Peek:         true,
	}
)

// NewClient creates a new IMAP client
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		config: cfg,
		logger: logger.With("email", cfg.Email),
	}
}

// Connect connects and logs in to the IMAP server
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	c.logger.Debug("connecting to IMAP server", "server", c.config.Server, "tls", c.config.TLS)

	timeout := c.config.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}

	// go-imap v1 has no context support; abort the connection if ctx ends first
	type dialResult struct {
		c   *client.Client
		err error
	}
	done := make(chan dialResult, 1)
	go func() {
		var (
			imapClient *client.Client
			err        error
		)
		if c.config.TLS {
			imapClient, err = client.DialWithDialerTLS(dialer, c.config.Server, &tls.Config{
				InsecureSkipVerify: c.config.InsecureSkipVerify,
			})
		} else {
			imapClient, err = client.DialWithDialer(dialer, c.config.Server)
		}
		if err != nil {
			done <- dialResult{err: fmt.Errorf("failed to connect: %w", err)}
			return
		}

		imapClient.Timeout = c.config.CommandTimeout
		if err := imapClient.Login(c.config.Email, c.config.Password); err != nil {
			imapClient.Logout()
			done <- dialResult{err: fmt.Errorf("failed to login: %w", err)}
			return
		}
		done <- dialResult{c: imapClient}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.c != nil {
				r.c.Terminate()
			}
		}()
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		c.client = r.c
	}

	c.logger.Debug("connected to IMAP server")
	return nil
}

// SelectINBOX selects the INBOX mailbox read-only
func (c *Client) SelectINBOX(ctx context.Context) (*imap.MailboxStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}

	mbox, err := c.client.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	return mbox, nil
}

// FetchSince fetches header, text and internal date of every INBOX message
// with an internal date on or after since.
func (c *Client) FetchSince(ctx context.Context, since time.Time) ([]RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}

	stop := context.AfterFunc(ctx, func() { c.client.Terminate() })
	defer stop()

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	items := []imap.FetchItem{
		imap.FetchUid,
		imap.FetchInternalDate,
		headerSection.FetchItem(),
		textSection.FetchItem(),
	}

	messages := make(chan *imap.Message, 100)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	raws := make([]RawMessage, 0, len(uids))
	for msg := range messages {
		raw, err := readRawMessage(msg)
		if err != nil {
			// keep the uid so the sync engine can log and skip it
			c.logger.Warn("failed to read message sections", "uid", msg.Uid, "error", err)
		}
		raws = append(raws, raw)
	}

	if err := <-done; err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}

	return raws, nil
}

// readRawMessage copies the fetched literals out of an IMAP message
func readRawMessage(msg *imap.Message) (RawMessage, error) {
	raw := RawMessage{
		UID:  msg.Uid,
		Date: msg.InternalDate,
	}

	var err error
	if lit := msg.GetBody(headerSection); lit != nil {
		if raw.Header, err = io.ReadAll(lit); err != nil {
			return raw, fmt.Errorf("header: %w", err)
		}
	}
	if lit := msg.GetBody(textSection); lit != nil {
		if raw.Body, err = io.ReadAll(lit); err != nil {
			return raw, fmt.Errorf("text: %w", err)
		}
	}
	return raw, nil
}

// Close logs out and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	imapClient := c.client
	c.client = nil
	c.mu.Unlock()

	if imapClient == nil {
		return nil
	}

	// Try logout with timeout, then force close
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Logout()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		return imapClient.Terminate()
	}
}
