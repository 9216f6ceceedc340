package formatter

import (
	"fmt"
	"strings"

	"github.com/mixelka/mailgroups/internal/company"
	"github.com/mixelka/mailgroups/pkg/models"
)

const dateLayout = "02.01.2006 15:04"

// TelegramFormatter formats groups and summaries for Telegram
type TelegramFormatter struct {
	maxLength int
}

// NewTelegramFormatter creates a new Telegram formatter
func NewTelegramFormatter() *TelegramFormatter {
	return &TelegramFormatter{
		maxLength: 4000, // Leave room for markup
	}
}

// FormatResults renders refresh results, one block per account with groups
// bucketed by company. The text is split into messages that fit Telegram.
func (f *TelegramFormatter) FormatResults(results []models.AccountResult) []string {
	if len(results) == 0 {
		return []string{"No accounts configured."}
	}

	var lines []string
	for i, r := range results {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, fmt.Sprintf("📬 <b>%s</b>", f.escapeHTML(r.Account.Email)))
		if reason, failed := r.Failure(); failed {
			lines = append(lines, fmt.Sprintf("⚠️ <i>Sync failed: %s</i>", f.escapeHTML(reason)))
		}

		groups := r.Groups()
		if len(groups) == 0 {
			lines = append(lines, "<i>No groups yet.</i>")
			continue
		}

		for _, c := range company.ByCompany(groups) {
			lines = append(lines, fmt.Sprintf("🏢 <b>%s</b>", f.escapeHTML(c.Company)))
			for _, g := range c.Groups {
				lines = append(lines, f.groupLine(g))
				if len(g.Messages) > 0 {
					lines = append(lines, fmt.Sprintf("    <i>%s</i>", f.escapeHTML(f.truncate(g.Messages[0].Subject, 80))))
				}
			}
		}
	}

	return f.chunk(lines)
}

func (f *TelegramFormatter) groupLine(g models.Group) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  • <b>%s</b> · %d %s", f.escapeHTML(g.Tag), len(g.Messages), plural(len(g.Messages), "email", "emails")))
	if len(g.Messages) > 0 {
		sb.WriteString(" · " + g.Messages[0].Date.Format(dateLayout))
	}
	if g.Responsible != "" {
		sb.WriteString(" · owner " + f.escapeHTML(g.Responsible))
	}
	return sb.String()
}

// Tags returns the distinct group tags of results in display order
func (f *TelegramFormatter) Tags(results []models.AccountResult) []string {
	seen := map[string]bool{}
	var tags []string
	for _, r := range results {
		for _, g := range r.Groups() {
			if !seen[g.Tag] {
				seen[g.Tag] = true
				tags = append(tags, g.Tag)
			}
		}
	}
	return tags
}

// FormatSummary formats a generated group summary
func (f *TelegramFormatter) FormatSummary(tag, text string) string {
	header := fmt.Sprintf("📝 <b>Summary: %s</b>\n\n", f.escapeHTML(tag))
	return header + f.escapeHTML(f.truncate(text, f.maxLength-len(header)-50))
}

// FormatSyncFailure formats a sync failure alert
func (f *TelegramFormatter) FormatSyncFailure(accountEmail string, err error) string {
	return fmt.Sprintf("⚠️ <b>Sync failed</b> for %s\n<code>%s</code>", f.escapeHTML(accountEmail), f.escapeHTML(err.Error()))
}

// FormatParticipants formats the people involved in a group
func (f *TelegramFormatter) FormatParticipants(tag string, groups []company.ParticipantGroup) string {
	if len(groups) == 0 {
		return fmt.Sprintf("No people found for <b>%s</b>.", f.escapeHTML(tag))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 <b>People in %s</b>\n", f.escapeHTML(tag)))
	for _, g := range groups {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", f.escapeHTML(g.Company)))
		for _, p := range g.People {
			sb.WriteString("  • " + f.escapeHTML(p) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatDomains formats the company settings view
func (f *TelegramFormatter) FormatDomains(domains []company.DomainInfo) []string {
	if len(domains) == 0 {
		return []string{"No domains seen yet."}
	}

	lines := []string{"🏢 <b>Company domains</b>"}
	for _, d := range domains {
		line := "<code>" + f.escapeHTML(d.Domain) + "</code>"
		if d.Setting.Name != "" {
			line += " → " + f.escapeHTML(d.Setting.Name)
		}
		if d.Setting.Hidden {
			line += " · hidden"
		}
		if d.Setting.Responsible != "" {
			line += " · owner " + f.escapeHTML(d.Setting.Responsible)
		}
		if d.Generic && !d.Setting.Hidden && d.Setting.Name == "" {
			line += " · <i>generic provider</i>"
		}
		lines = append(lines, line)
	}
	return f.chunk(lines)
}

// chunk joins lines into messages no longer than maxLength
func (f *TelegramFormatter) chunk(lines []string) []string {
	var chunks []string
	var sb strings.Builder
	for _, line := range lines {
		if sb.Len() > 0 && sb.Len()+len(line)+1 > f.maxLength {
			chunks = append(chunks, strings.TrimRight(sb.String(), "\n"))
			sb.Reset()
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if sb.Len() > 0 {
		chunks = append(chunks, strings.TrimRight(sb.String(), "\n"))
	}
	return chunks
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// escapeHTML escapes HTML special characters for Telegram
func (f *TelegramFormatter) escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// truncate truncates text to maxLen characters
func (f *TelegramFormatter) truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}
