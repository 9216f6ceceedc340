package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-telegram/bot/models"

	"github.com/mixelka/mailgroups/internal/company"
	"github.com/mixelka/mailgroups/internal/email"
	"github.com/mixelka/mailgroups/internal/formatter"
	"github.com/mixelka/mailgroups/internal/groups"
	appmodels "github.com/mixelka/mailgroups/pkg/models"
)

// Service is the part of the groups service the bot drives
type Service interface {
	Refresh(ctx context.Context) ([]appmodels.AccountResult, error)
	Summarize(ctx context.Context, tag string) (string, error)
	Participants(ctx context.Context, tag string) ([]company.ParticipantGroup, error)
	Unfollow(ctx context.Context, tag string, deleteData bool) error
	IgnoredGroups(ctx context.Context) ([]string, error)
	Domains(ctx context.Context) ([]company.DomainInfo, error)
	CompanySettings(ctx context.Context) (map[string]appmodels.CompanySetting, error)
	UpdateCompanySetting(ctx context.Context, setting appmodels.CompanySetting) (map[string]appmodels.CompanySetting, error)
	UpdateGroupResponsibility(ctx context.Context, tag, responsible string) (map[string]appmodels.GroupConfig, error)
	TestConnection(ctx context.Context, account *appmodels.EmailAccount, password string) error
}

// reply is what a command answers with. The keyboard goes under the last text.
type reply struct {
	texts    []string
	keyboard *models.InlineKeyboardMarkup
}

func text(format string, args ...any) reply {
	return reply{texts: []string{fmt.Sprintf(format, args...)}}
}

const helpText = `<b>Mail Groups</b>

Groups mailbox messages into projects by their <code>#SBS: Name</code> tag.

<b>Commands:</b>
/groups - sync and show project groups
/summary tag - AI summary of a group
/people tag - people taking part in a group
/unfollow tag [purge] - stop showing a group, purge forgets learned subjects
/ignored - list unfollowed groups
/company - list seen domains
/company domain [name|-] [hide|show] - rename or hide a company domain
/owner tag email|- - set the responsible of a group
/check email password [host[:port]] [notls] - test IMAP credentials

<b>Examples:</b>
<code>/summary Atlas</code>
<code>/company foo.com Foo Inc</code>
<code>/company spam.io - hide</code>
<code>/check me@example.com secret imap.example.com:993</code>`

// commands holds the command logic independent of the Telegram transport
type commands struct {
	service   Service
	formatter *formatter.TelegramFormatter
	logger    *slog.Logger
}

func (c *commands) help(context.Context, string) reply {
	return reply{texts: []string{helpText}}
}

func (c *commands) groups(ctx context.Context, _ string) reply {
	results, err := c.service.Refresh(ctx)
	if err != nil {
		c.logger.Error("refresh failed", "error", err)
		return text("Failed to load groups")
	}
	return reply{
		texts:    c.formatter.FormatResults(results),
		keyboard: formatter.BuildGroupsKeyboard(c.formatter.Tags(results)),
	}
}

func (c *commands) summary(ctx context.Context, tag string) reply {
	if tag == "" {
		return text("Usage: <code>/summary tag</code>")
	}

	out, err := c.service.Summarize(ctx, tag)
	if err != nil {
		var sumErr *groups.SummaryError
		if !errors.As(err, &sumErr) {
			c.logger.Error("summary failed", "group", tag, "error", err)
			return text("Failed to load group %s", escape(tag))
		}
		switch sumErr.Kind {
		case groups.SummaryEmptyGroup:
			return text("No messages in <b>%s</b>", escape(tag))
		case groups.SummaryMissingCredential:
			return text("AI summary is not configured: set GEMINI_API_KEY")
		default:
			return text("Summary failed: %s", escape(sumErr.Error()))
		}
	}
	return reply{texts: []string{c.formatter.FormatSummary(tag, out)}}
}

func (c *commands) people(ctx context.Context, tag string) reply {
	if tag == "" {
		return text("Usage: <code>/people tag</code>")
	}

	participants, err := c.service.Participants(ctx, tag)
	if err != nil {
		c.logger.Error("failed to load participants", "group", tag, "error", err)
		return text("Failed to load people of %s", escape(tag))
	}
	return reply{texts: []string{c.formatter.FormatParticipants(tag, participants)}}
}

func (c *commands) unfollow(ctx context.Context, args string) reply {
	tag, purge := parseUnfollowArgs(args)
	if tag == "" {
		return text("Usage: <code>/unfollow tag [purge]</code>")
	}
	return c.unfollowTag(ctx, tag, purge)
}

// unfollowTag unfollows the exact tag given
func (c *commands) unfollowTag(ctx context.Context, tag string, purge bool) reply {
	if err := c.service.Unfollow(ctx, tag, purge); err != nil {
		c.logger.Error("unfollow failed", "group", tag, "error", err)
		return text("Failed to unfollow %s", escape(tag))
	}
	if purge {
		return text("Unfollowed <b>%s</b> and forgot its subjects", escape(tag))
	}
	return text("Unfollowed <b>%s</b>", escape(tag))
}

func (c *commands) ignored(ctx context.Context, _ string) reply {
	names, err := c.service.IgnoredGroups(ctx)
	if err != nil {
		c.logger.Error("failed to load ignored groups", "error", err)
		return text("Failed to load unfollowed groups")
	}
	if len(names) == 0 {
		return text("No unfollowed groups")
	}
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = "• " + escape(n)
	}
	return text("<b>Unfollowed groups</b>\n%s", strings.Join(escaped, "\n"))
}

func (c *commands) company(ctx context.Context, args string) reply {
	if args == "" {
		domains, err := c.service.Domains(ctx)
		if err != nil {
			c.logger.Error("failed to load domains", "error", err)
			return text("Failed to load domains")
		}
		return reply{texts: c.formatter.FormatDomains(domains)}
	}

	update, err := parseCompanyArgs(args)
	if err != nil {
		return text("%s\nUsage: <code>/company domain [name|-] [hide|show]</code>", escape(err.Error()))
	}

	current, err := c.service.CompanySettings(ctx)
	if err != nil {
		c.logger.Error("failed to load company settings", "error", err)
		return text("Failed to load company settings")
	}
	setting := update.apply(current[update.domain])

	saved, err := c.service.UpdateCompanySetting(ctx, setting)
	if err != nil {
		c.logger.Error("failed to update company", "domain", update.domain, "error", err)
		return text("Failed to update %s", escape(update.domain))
	}

	s := saved[setting.Domain]
	name := s.Name
	if name == "" {
		name = "(default)"
	}
	state := "shown"
	if s.Hidden {
		state = "hidden"
	}
	return text("<code>%s</code> → %s · %s", escape(s.Domain), escape(name), state)
}

func (c *commands) owner(ctx context.Context, args string) reply {
	tag, responsible, ok := parseOwnerArgs(args)
	if !ok {
		return text("Usage: <code>/owner tag email|-</code>")
	}

	if _, err := c.service.UpdateGroupResponsibility(ctx, tag, responsible); err != nil {
		c.logger.Error("failed to update group owner", "group", tag, "error", err)
		return text("Failed to update %s", escape(tag))
	}
	if responsible == "" {
		return text("Cleared the owner of <b>%s</b>", escape(tag))
	}
	return text("Owner of <b>%s</b> is now %s", escape(tag), escape(responsible))
}

func (c *commands) check(ctx context.Context, args string) reply {
	req, err := parseCheckArgs(args)
	if err != nil {
		return text("%s\nUsage: <code>/check email password [host[:port]] [notls]</code>", escape(err.Error()))
	}

	if req.account.Host == "" {
		host, err := email.ResolveIMAPHost(req.account.Email)
		if err != nil {
			return text("Could not determine the IMAP server of %s", escape(req.account.Email))
		}
		req.account.Host = host
	}

	if err := c.service.TestConnection(ctx, req.account, req.password); err != nil {
		c.logger.Warn("connection check failed", "email", req.account.Email, "error", err)
		return text("❌ %s: %s", escape(req.account.Address()), escape(err.Error()))
	}
	return text("✅ Connected to %s as %s", escape(req.account.Address()), escape(req.account.Email))
}

// parseCallback decodes inline button data. It returns the text to answer
// the callback query with and whether there is an action to run.
func (c *commands) parseCallback(data string) (appmodels.CallbackData, string, bool) {
	cb, err := formatter.DecodeCallback(data)
	if err != nil || cb.Tag == "" {
		c.logger.Warn("failed to decode callback", "error", err, "data", data)
		return cb, "Unknown action", false
	}

	switch cb.Action {
	case appmodels.CallbackSummary:
		return cb, "Summarizing " + cb.Tag, true
	case appmodels.CallbackPeople:
		return cb, "", true
	case appmodels.CallbackUnfollow:
		return cb, "Unfollowing " + cb.Tag, true
	case appmodels.CallbackPurge:
		return cb, "Forgetting " + cb.Tag, true
	}
	return cb, "Unknown action", false
}

// runCallback runs a decoded button action on its exact tag
func (c *commands) runCallback(ctx context.Context, cb appmodels.CallbackData) reply {
	switch cb.Action {
	case appmodels.CallbackSummary:
		return c.summary(ctx, cb.Tag)
	case appmodels.CallbackPeople:
		return c.people(ctx, cb.Tag)
	case appmodels.CallbackUnfollow:
		return c.unfollowTag(ctx, cb.Tag, false)
	case appmodels.CallbackPurge:
		return c.unfollowTag(ctx, cb.Tag, true)
	}
	return reply{}
}

// parseUnfollowArgs splits "tag [purge]". Spacing inside the tag is kept.
func parseUnfollowArgs(args string) (string, bool) {
	args = strings.TrimSpace(args)
	if rest, last := splitLastWord(args); rest != "" && strings.EqualFold(last, "purge") {
		return rest, true
	}
	return args, false
}

// splitLastWord splits s before its last whitespace-separated word. Spacing
// inside rest is kept.
func splitLastWord(s string) (rest, last string) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return "", s
	}
	return strings.TrimSpace(s[:i]), s[i+1:]
}

// companyUpdate is a parsed /company command. Nil fields keep the
// current value.
type companyUpdate struct {
	domain string
	name   *string
	hidden *bool
}

func (u companyUpdate) apply(current appmodels.CompanySetting) appmodels.CompanySetting {
	current.Domain = u.domain
	if u.name != nil {
		current.Name = *u.name
	}
	if u.hidden != nil {
		current.Hidden = *u.hidden
	}
	return current
}

// parseCompanyArgs parses "domain [name|-] [hide|show]". "-" restores the
// default name.
func parseCompanyArgs(args string) (companyUpdate, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return companyUpdate{}, errors.New("domain and a name or hide|show are required")
	}

	u := companyUpdate{domain: strings.ToLower(fields[0])}
	if !strings.Contains(u.domain, ".") {
		return companyUpdate{}, fmt.Errorf("invalid domain %q", fields[0])
	}

	rest := fields[1:]
	n := len(rest)
	switch strings.ToLower(rest[n-1]) {
	case "hide", "show":
		hidden := strings.EqualFold(rest[n-1], "hide")
		u.hidden = &hidden
		rest = rest[:n-1]
	}

	if len(rest) > 0 {
		name := strings.Join(rest, " ")
		if name == "-" {
			name = ""
		}
		u.name = &name
	}
	return u, nil
}

// parseOwnerArgs parses "tag email|-". The tag may contain spaces.
func parseOwnerArgs(args string) (tag, responsible string, ok bool) {
	tag, responsible = splitLastWord(args)
	if tag == "" {
		return "", "", false
	}
	if responsible == "-" {
		responsible = ""
	}
	return tag, responsible, true
}

// checkRequest is a parsed /check command
type checkRequest struct {
	account  *appmodels.EmailAccount
	password string
}

// parseCheckArgs parses "email password [host[:port]] [notls]"
func parseCheckArgs(args string) (checkRequest, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 || len(fields) > 4 {
		return checkRequest{}, errors.New("email and password are required")
	}
	if email.GetDomainFromEmail(fields[0]) == "" {
		return checkRequest{}, fmt.Errorf("invalid email %q", fields[0])
	}

	account := &appmodels.EmailAccount{Email: fields[0], Port: 993, TLS: true}
	req := checkRequest{account: account, password: fields[1]}

	rest := fields[2:]
	if n := len(rest); n > 0 && strings.EqualFold(rest[n-1], "notls") {
		account.TLS = false
		rest = rest[:n-1]
	}
	if len(rest) > 1 {
		return checkRequest{}, errors.New("too many arguments")
	}
	if len(rest) == 1 {
		host, port, err := splitHostPort(rest[0])
		if err != nil {
			return checkRequest{}, err
		}
		account.Host = host
		if port != 0 {
			account.Port = port
		}
	}
	return req, nil
}

func splitHostPort(s string) (string, int, error) {
	if !strings.Contains(s, ":") {
		return s, 0, nil
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, fmt.Errorf("invalid server %q", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// commandArgs returns the text after the command word, inner spacing kept
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}
