package groups

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mixelka/mailgroups/internal/summary"
	"github.com/mixelka/mailgroups/pkg/models"
)

// summaryLimit bounds how many messages are sent to the text generator
const summaryLimit = 50

// SummaryErrorKind classifies summary failures
type SummaryErrorKind string

const (
	SummaryMissingCredential SummaryErrorKind = "missing_credential"
	SummaryRequestFailed     SummaryErrorKind = "request_failed"
	SummaryEmptyGroup        SummaryErrorKind = "empty_group"
)

// SummaryError is returned by Summarize
type SummaryError struct {
	Kind SummaryErrorKind
	Err  error
}

func (e *SummaryError) Error() string {
	switch e.Kind {
	case SummaryEmptyGroup:
		return "no emails found for this group"
	case SummaryMissingCredential:
		return fmt.Sprintf("summary unavailable: %v", e.Err)
	}
	return fmt.Sprintf("failed to generate summary: %v", e.Err)
}

func (e *SummaryError) Unwrap() error {
	return e.Err
}

// Summarize asks the text generator for an executive summary of the oldest
// messages classified into tag, across all enabled accounts. Failures are
// returned as *SummaryError.
func (s *Service) Summarize(ctx context.Context, tag string) (string, error) {
	selected, err := s.tagMessages(ctx, tag)
	if err != nil {
		return "", err
	}
	if len(selected) == 0 {
		return "", &SummaryError{Kind: SummaryEmptyGroup}
	}

	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].Date.Equal(selected[j].Date) {
			return selected[i].Date.Before(selected[j].Date)
		}
		return selected[i].ID < selected[j].ID
	})
	if len(selected) > summaryLimit {
		selected = selected[:summaryLimit]
	}

	text, err := s.generator.Generate(ctx, s.summaryPrompt(tag, selected))
	if err != nil {
		if errors.Is(err, summary.ErrMissingAPIKey) {
			return "", &SummaryError{Kind: SummaryMissingCredential, Err: err}
		}
		s.logger.Error("summary generation failed", "group", tag, "error", err)
		return "", &SummaryError{Kind: SummaryRequestFailed, Err: err}
	}
	return text, nil
}

func (s *Service) summaryPrompt(tag string, messages []*models.EmailMessage) string {
	blocks := make([]string, 0, len(messages))
	for _, m := range messages {
		blocks = append(blocks, fmt.Sprintf("Date: %s\nFrom: %s\nSubject: %s\nContent: %s",
			m.Date.Format(time.RFC1123Z), m.From, m.Subject, m.Snippet))
	}

	return fmt.Sprintf("Analyze the following email thread of the project '%s'. Write an executive summary in %s.\n\n%s",
		tag, s.language, strings.Join(blocks, "\n\n---\n\n"))
}
