package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/mixelka/mailgroups/internal/parser"
	"github.com/mixelka/mailgroups/pkg/models"
)

const (
	unknownAddress = "Unknown"
	snippetLength  = 100
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Parser turns fetched header and text sections into messages
type Parser struct {
	html *parser.HTMLParser
}

// NewParser creates a new message parser
func NewParser() *Parser {
	return &Parser{html: parser.NewHTMLParser()}
}

// Parse builds a message of the given account from a fetched raw message.
// The header and text sections are read as one RFC 5322 message; text/plain
// is preferred over text/html.
func (p *Parser) Parse(accountID int64, raw RawMessage) (*models.EmailMessage, error) {
	if len(bytes.TrimSpace(raw.Header)) == 0 {
		return nil, errors.New("missing header section")
	}

	var buf bytes.Buffer
	buf.Write(raw.Header)
	if !bytes.HasSuffix(raw.Header, []byte("\r\n\r\n")) && !bytes.HasSuffix(raw.Header, []byte("\n\n")) {
		buf.WriteString("\r\n")
	}
	buf.Write(raw.Body)

	mr, err := mail.CreateReader(&buf)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	body, err := p.readBody(mr)
	if err != nil {
		return nil, err
	}

	msg := &models.EmailMessage{
		ID:        models.MessageKey(accountID, raw.UID),
		AccountID: accountID,
		UID:       raw.UID,
		Subject:   subject(&mr.Header),
		From:      addressList(&mr.Header, "From"),
		To:        addressList(&mr.Header, "To"),
		Date:      raw.Date,
		BodyText:  body,
		Snippet:   Snippet(body),
	}

	if msg.Date.IsZero() {
		if d, err := mr.Header.Date(); err == nil && !d.IsZero() {
			msg.Date = d
		} else {
			msg.Date = time.Now()
		}
	}
	msg.Date = msg.Date.UTC().Truncate(time.Second)

	return msg, nil
}

// readBody returns the first text/plain part, else the first text/html part
// flattened to text
func (p *Parser) readBody(mr *mail.Reader) (string, error) {
	var plain, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return "", fmt.Errorf("failed to read part: %w", err)
		}
		if part == nil {
			continue
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		switch {
		case ct == "text/plain" && plain == "":
			b, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read text part: %w", err)
			}
			plain = string(b)
		case ct == "text/html" && html == "":
			b, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read html part: %w", err)
			}
			html = string(b)
		case ct == "" && plain == "":
			// Single-part messages without Content-Type default to text/plain
			b, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read body: %w", err)
			}
			plain = string(b)
		}
	}

	if strings.TrimSpace(plain) != "" || html == "" {
		return strings.TrimSpace(plain), nil
	}

	text, err := p.html.Parse(html)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	return text, nil
}

func subject(h *mail.Header) string {
	s, err := h.Subject()
	if err != nil {
		s = h.Get("Subject")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return models.DefaultSubject
	}
	return s
}

func addressList(h *mail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		if v := strings.TrimSpace(h.Get(key)); v != "" {
			return v
		}
		return unknownAddress
	}

	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", ")
}

// Snippet returns the first 100 characters of text with whitespace runs
// collapsed, followed by "...". Empty text has an empty snippet.
func Snippet(text string) string {
	if text == "" {
		return ""
	}
	r := []rune(text)
	if len(r) > snippetLength {
		r = r[:snippetLength]
	}
	return whitespaceRegex.ReplaceAllString(string(r), " ") + "..."
}
