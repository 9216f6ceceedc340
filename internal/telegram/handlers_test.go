package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/mailgroups/internal/company"
	"github.com/mixelka/mailgroups/internal/formatter"
	"github.com/mixelka/mailgroups/internal/groups"
	appmodels "github.com/mixelka/mailgroups/pkg/models"
)

type fakeService struct {
	results    []appmodels.AccountResult
	summary    string
	summaryErr error
	people     []company.ParticipantGroup
	domains    []company.DomainInfo
	ignored    []string
	companies  map[string]appmodels.CompanySetting
	connErr    error
	summarized string
	unfollowed map[string]bool // tag -> purge
	owners     map[string]string
	tested     *appmodels.EmailAccount
	password   string
}

func newFakeService() *fakeService {
	return &fakeService{
		companies:  map[string]appmodels.CompanySetting{},
		unfollowed: map[string]bool{},
		owners:     map[string]string{},
	}
}

func (f *fakeService) Refresh(context.Context) ([]appmodels.AccountResult, error) {
	return f.results, nil
}

func (f *fakeService) Summarize(_ context.Context, tag string) (string, error) {
	f.summarized = tag
	return f.summary, f.summaryErr
}

func (f *fakeService) Participants(context.Context, string) ([]company.ParticipantGroup, error) {
	return f.people, nil
}

func (f *fakeService) Unfollow(_ context.Context, tag string, deleteData bool) error {
	f.unfollowed[tag] = deleteData
	return nil
}

func (f *fakeService) IgnoredGroups(context.Context) ([]string, error) { return f.ignored, nil }

func (f *fakeService) Domains(context.Context) ([]company.DomainInfo, error) { return f.domains, nil }

func (f *fakeService) CompanySettings(context.Context) (map[string]appmodels.CompanySetting, error) {
	return f.companies, nil
}

func (f *fakeService) UpdateCompanySetting(_ context.Context, s appmodels.CompanySetting) (map[string]appmodels.CompanySetting, error) {
	f.companies[s.Domain] = s
	return f.companies, nil
}

func (f *fakeService) UpdateGroupResponsibility(_ context.Context, tag, responsible string) (map[string]appmodels.GroupConfig, error) {
	f.owners[tag] = responsible
	return nil, nil
}

func (f *fakeService) TestConnection(_ context.Context, account *appmodels.EmailAccount, password string) error {
	f.tested = account
	f.password = password
	return f.connErr
}

func newCommands(svc Service) *commands {
	return &commands{
		service:   svc,
		formatter: formatter.NewTelegramFormatter(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestParseUnfollowArgs(t *testing.T) {
	tests := []struct {
		args  string
		tag   string
		purge bool
	}{
		{"Atlas", "Atlas", false},
		{"Atlas purge", "Atlas", true},
		{"Atlas  Project PURGE", "Atlas  Project", true},
		{"Cleanup purge purge", "Cleanup purge", true},
		{"purge", "purge", false},
		{"", "", false},
	}
	for _, tt := range tests {
		tag, purge := parseUnfollowArgs(tt.args)
		assert.Equal(t, tt.tag, tag, tt.args)
		assert.Equal(t, tt.purge, purge, tt.args)
	}
}

func TestParseCompanyArgs(t *testing.T) {
	u, err := parseCompanyArgs("FOO.com Foo Inc")
	require.NoError(t, err)
	assert.Equal(t, "foo.com", u.domain)
	require.NotNil(t, u.name)
	assert.Equal(t, "Foo Inc", *u.name)
	assert.Nil(t, u.hidden)

	u, err = parseCompanyArgs("spam.io - hide")
	require.NoError(t, err)
	assert.Equal(t, "", *u.name)
	assert.True(t, *u.hidden)

	u, err = parseCompanyArgs("spam.io show")
	require.NoError(t, err)
	assert.Nil(t, u.name)
	assert.False(t, *u.hidden)

	_, err = parseCompanyArgs("foo.com")
	assert.Error(t, err)
	_, err = parseCompanyArgs("localhost Foo")
	assert.Error(t, err)
}

func TestCompanyUpdateKeepsCurrentValues(t *testing.T) {
	u, err := parseCompanyArgs("foo.com hide")
	require.NoError(t, err)

	got := u.apply(appmodels.CompanySetting{Domain: "foo.com", Name: "Foo Inc", Responsible: "x@foo.com"})
	assert.Equal(t, appmodels.CompanySetting{Domain: "foo.com", Name: "Foo Inc", Hidden: true, Responsible: "x@foo.com"}, got)
}

func TestParseOwnerArgs(t *testing.T) {
	tag, owner, ok := parseOwnerArgs("Atlas Project pm@foo.com")
	require.True(t, ok)
	assert.Equal(t, "Atlas Project", tag)
	assert.Equal(t, "pm@foo.com", owner)

	tag, owner, ok = parseOwnerArgs("Atlas -")
	require.True(t, ok)
	assert.Equal(t, "Atlas", tag)
	assert.Empty(t, owner)

	_, _, ok = parseOwnerArgs("Atlas")
	assert.False(t, ok)
}

func TestParseCheckArgs(t *testing.T) {
	req, err := parseCheckArgs("me@example.com secret imap.example.com:143 notls")
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", req.account.Email)
	assert.Equal(t, "secret", req.password)
	assert.Equal(t, "imap.example.com", req.account.Host)
	assert.Equal(t, 143, req.account.Port)
	assert.False(t, req.account.TLS)

	req, err = parseCheckArgs("me@example.com secret")
	require.NoError(t, err)
	assert.Empty(t, req.account.Host)
	assert.Equal(t, 993, req.account.Port)
	assert.True(t, req.account.TLS)

	for _, bad := range []string{"", "me@example.com", "nobody secret", "me@example.com secret host:abc", "me@example.com secret a b c"} {
		_, err := parseCheckArgs(bad)
		assert.Error(t, err, bad)
	}
}

func TestCommandArgs(t *testing.T) {
	assert.Equal(t, "Atlas   Project", commandArgs("/summary  Atlas   Project "))
	assert.Equal(t, "Foo  Bar", commandArgs("/people\tFoo  Bar"))
	assert.Equal(t, "", commandArgs("/groups"))
}

func TestGroupsCommand(t *testing.T) {
	svc := newFakeService()
	svc.results = []appmodels.AccountResult{{
		Account: appmodels.AccountInfo{ID: 1, Email: "ops@example.com"},
		Outcome: appmodels.Synced{Groups: []appmodels.Group{{Tag: "Atlas", Company: "Foo", Messages: []*appmodels.EmailMessage{{Subject: "hi"}}}}},
	}}

	r := newCommands(svc).groups(context.Background(), "")
	require.Len(t, r.texts, 1)
	assert.Contains(t, r.texts[0], "<b>Atlas</b>")
	require.NotNil(t, r.keyboard)
	assert.Len(t, r.keyboard.InlineKeyboard, 1)
}

func TestSummaryCommand(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	c := newCommands(svc)

	svc.summary = "All good"
	assert.Equal(t, []string{"📝 <b>Summary: Atlas</b>\n\nAll good"}, c.summary(ctx, "Atlas").texts)

	tests := []struct {
		err  error
		want string
	}{
		{&groups.SummaryError{Kind: groups.SummaryEmptyGroup}, "No messages in <b>Atlas</b>"},
		{&groups.SummaryError{Kind: groups.SummaryMissingCredential}, "AI summary is not configured: set GEMINI_API_KEY"},
		{&groups.SummaryError{Kind: groups.SummaryRequestFailed, Err: errors.New("quota")}, "Summary failed: failed to generate summary: quota"},
		{errors.New("db closed"), "Failed to load group Atlas"},
	}
	for _, tt := range tests {
		svc.summaryErr = tt.err
		assert.Equal(t, []string{tt.want}, c.summary(ctx, "Atlas").texts)
	}

	assert.Contains(t, c.summary(ctx, "").texts[0], "Usage")
}

func TestUnfollowCommand(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	c := newCommands(svc)

	assert.Equal(t, []string{"Unfollowed <b>Atlas</b>"}, c.unfollow(ctx, "Atlas").texts)
	assert.Equal(t, []string{"Unfollowed <b>Orion</b> and forgot its subjects"}, c.unfollow(ctx, "Orion purge").texts)
	assert.Equal(t, map[string]bool{"Atlas": false, "Orion": true}, svc.unfollowed)
	assert.Contains(t, c.unfollow(ctx, "").texts[0], "Usage")
}

func TestCompanyCommand(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	svc.companies["foo.com"] = appmodels.CompanySetting{Domain: "foo.com", Responsible: "x@foo.com"}
	svc.domains = []company.DomainInfo{{Domain: "foo.com"}}
	c := newCommands(svc)

	assert.Equal(t, []string{"🏢 <b>Company domains</b>\n<code>foo.com</code>"}, c.company(ctx, "").texts)

	assert.Equal(t, []string{"<code>foo.com</code> → Foo Inc · shown"}, c.company(ctx, "foo.com Foo Inc").texts)
	assert.Equal(t, []string{"<code>foo.com</code> → Foo Inc · hidden"}, c.company(ctx, "foo.com hide").texts)
	assert.Equal(t, "x@foo.com", svc.companies["foo.com"].Responsible)

	assert.Equal(t, []string{"<code>foo.com</code> → (default) · hidden"}, c.company(ctx, "foo.com -").texts)
	assert.Contains(t, c.company(ctx, "foo.com").texts[0], "Usage")
}

func TestOwnerCommand(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	c := newCommands(svc)

	assert.Equal(t, []string{"Owner of <b>Atlas</b> is now pm@foo.com"}, c.owner(ctx, "Atlas pm@foo.com").texts)
	assert.Equal(t, []string{"Cleared the owner of <b>Atlas</b>"}, c.owner(ctx, "Atlas -").texts)
	assert.Equal(t, "", svc.owners["Atlas"])
}

func TestIgnoredCommand(t *testing.T) {
	svc := newFakeService()
	c := newCommands(svc)
	assert.Equal(t, []string{"No unfollowed groups"}, c.ignored(context.Background(), "").texts)

	svc.ignored = []string{"Atlas", "A<b>"}
	assert.Equal(t, []string{"<b>Unfollowed groups</b>\n• Atlas\n• A&lt;b&gt;"}, c.ignored(context.Background(), "").texts)
}

func TestCheckCommand(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	c := newCommands(svc)

	r := c.check(ctx, "me@gmail.com app-pass")
	assert.Equal(t, []string{"✅ Connected to imap.gmail.com:993 as me@gmail.com"}, r.texts)
	assert.Equal(t, "app-pass", svc.password)
	assert.True(t, svc.tested.TLS)

	svc.connErr = errors.New("connection failed: login rejected")
	r = c.check(ctx, "me@example.com pw mail.example.com:143 notls")
	assert.Equal(t, []string{"❌ mail.example.com:143: connection failed: login rejected"}, r.texts)
	assert.False(t, svc.tested.TLS)
}

func TestCallback(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	svc.summary = "done"
	svc.people = []company.ParticipantGroup{{Company: "Foo", People: []string{"Alice"}}}
	c := newCommands(svc)

	press := func(action appmodels.CallbackAction, tag string) (string, reply) {
		cb, answer, ok := c.parseCallback(formatter.EncodeCallback(appmodels.CallbackData{Action: action, Tag: tag}))
		if !ok {
			return answer, reply{}
		}
		return answer, c.runCallback(ctx, cb)
	}

	answer, r := press(appmodels.CallbackSummary, "Atlas")
	assert.Equal(t, "Summarizing Atlas", answer)
	assert.Contains(t, r.texts[0], "done")

	_, r = press(appmodels.CallbackPeople, "Atlas")
	assert.Contains(t, r.texts[0], "Alice")

	answer, r = press(appmodels.CallbackUnfollow, "Atlas")
	assert.Equal(t, "Unfollowing Atlas", answer)
	assert.Equal(t, []string{"Unfollowed <b>Atlas</b>"}, r.texts)

	answer, _ = press(appmodels.CallbackPurge, "Orion")
	assert.Equal(t, "Forgetting Orion", answer)

	assert.Equal(t, map[string]bool{"Atlas": false, "Orion": true}, svc.unfollowed)

	_, _, ok := c.parseCallback("not json")
	assert.False(t, ok)
	answer, _ = press("zzz", "Atlas")
	assert.Equal(t, "Unknown action", answer)
}

func TestCallbackKeepsExactTag(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	c := newCommands(svc)

	for _, tt := range []struct {
		action appmodels.CallbackAction
		tag    string
	}{
		{appmodels.CallbackUnfollow, "Cleanup purge"},
		{appmodels.CallbackPurge, "Foo  Bar"},
	} {
		cb, _, ok := c.parseCallback(formatter.EncodeCallback(appmodels.CallbackData{Action: tt.action, Tag: tt.tag}))
		require.True(t, ok)
		c.runCallback(ctx, cb)
	}

	assert.Equal(t, map[string]bool{"Cleanup purge": false, "Foo  Bar": true}, svc.unfollowed)
}

func TestSummaryCommandKeepsInnerSpacing(t *testing.T) {
	svc := newFakeService()
	svc.summary = "ok"
	c := newCommands(svc)

	r := c.summary(context.Background(), commandArgs("/summary Foo  Bar"))
	assert.Equal(t, "Foo  Bar", svc.summarized)
	assert.Equal(t, []string{"📝 <b>Summary: Foo  Bar</b>\n\nok"}, r.texts)
}

func TestParseCallbackDoesNotRunAction(t *testing.T) {
	svc := newFakeService()
	c := newCommands(svc)

	_, answer, ok := c.parseCallback(formatter.EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackSummary, Tag: "Atlas"}))
	require.True(t, ok)
	assert.Equal(t, "Summarizing Atlas", answer)
	assert.Empty(t, svc.summarized)

	_, _, ok = c.parseCallback(formatter.EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackPurge, Tag: "Atlas"}))
	require.True(t, ok)
	assert.Empty(t, svc.unfollowed)
}
