// Package classifier assigns messages to project groups.
//
// A message's tag is decided by the first tier that matches:
//
//  1. an explicit "#SBS: <tag>" marker in the subject
//  2. an explicit marker in the body
//  3. the learned subject map (exact subject match)
//  4. a bare "#SBS" anywhere, which yields PendingTag
//
// Otherwise the message is unclassified. Explicit markers teach the learned
// subject map, so later replies without a marker land in the same group.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/mixelka/mailgroups/pkg/models"
)

// PendingTag groups messages that carry the marker without a tag name
const PendingTag = "Unclassified/Pending"

var (
	explicitRegex = regexp.MustCompile(`(?i)#SBS:\s*([^#\r\n]+)`)
	markerRegex   = regexp.MustCompile(`(?i)#SBS`)
)

// Source is the tier that decided a classification
type Source int

const (
	SourceNone Source = iota
	SourceExplicit
	SourceLearned
	SourcePending
)

func (s Source) String() string {
	switch s {
	case SourceExplicit:
		return "explicit"
	case SourceLearned:
		return "learned"
	case SourcePending:
		return "pending"
	}
	return "none"
}

// Result of classifying one message. Tag is empty when unclassified.
type Result struct {
	Tag     string
	Source  Source
	Ignored bool
}

// Visible reports whether the message belongs to a group that is shown
func (r Result) Visible() bool {
	return r.Tag != "" && !r.Ignored
}

// Memory is the persistent classification state
type Memory interface {
	LearnedSubjects(ctx context.Context) (map[string]string, error)
	LearnSubject(ctx context.Context, subject, group string) error
	IgnoredGroups(ctx context.Context) (map[string]bool, error)
}

// Classifier classifies messages against a Memory
type Classifier struct {
	memory Memory
	logger *slog.Logger
}

// New creates a new classifier
func New(memory Memory, logger *slog.Logger) *Classifier {
	return &Classifier{
		memory: memory,
		logger: logger.With("component", "classifier"),
	}
}

// ExtractTag returns the tag of the first explicit marker in text
func ExtractTag(text string) (string, bool) {
	m := explicitRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	tag := strings.TrimSpace(m[1])
	return tag, tag != ""
}

// HasMarker reports whether text contains the marker, with or without a tag
func HasMarker(text string) bool {
	return markerRegex.MatchString(text)
}

func explicitTag(msg *models.EmailMessage) (string, bool) {
	if tag, ok := ExtractTag(msg.Subject); ok {
		return tag, true
	}
	return ExtractTag(msg.BodyText)
}

func learnable(subject string) bool {
	return subject != "" && subject != models.DefaultSubject
}

// Pass classifies a batch of messages against one snapshot of the memory
type Pass struct {
	learned map[string]string
	ignored map[string]bool
}

// Prepare snapshots the memory and learns every explicit marker in messages,
// oldest first, before anything is classified. The result of Classify is
// then independent of the order messages are visited in. Markers of ignored
// groups are not learned.
func (c *Classifier) Prepare(ctx context.Context, messages []*models.EmailMessage) (*Pass, error) {
	learned, err := c.memory.LearnedSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load subject map: %w", err)
	}
	ignored, err := c.memory.IgnoredGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignored groups: %w", err)
	}
	if learned == nil {
		learned = map[string]string{}
	}

	ordered := make([]*models.EmailMessage, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})

	changed := map[string]string{}
	for _, msg := range ordered {
		tag, ok := explicitTag(msg)
		if !ok || !learnable(msg.Subject) || ignored[tag] {
			continue
		}
		if learned[msg.Subject] != tag {
			learned[msg.Subject] = tag
			changed[msg.Subject] = tag
		}
	}

	subjects := make([]string, 0, len(changed))
	for s := range changed {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	for _, s := range subjects {
		if err := c.memory.LearnSubject(ctx, s, changed[s]); err != nil {
			c.logger.Warn("failed to learn subject", "subject", s, "group", changed[s], "error", err)
		}
	}

	return &Pass{learned: learned, ignored: ignored}, nil
}

// Classify returns the classification of msg
func (p *Pass) Classify(msg *models.EmailMessage) Result {
	var r Result
	if tag, ok := explicitTag(msg); ok {
		r = Result{Tag: tag, Source: SourceExplicit}
	} else if tag, ok := p.learned[msg.Subject]; ok && learnable(msg.Subject) {
		r = Result{Tag: tag, Source: SourceLearned}
	} else if HasMarker(msg.Subject) || HasMarker(msg.BodyText) {
		r = Result{Tag: PendingTag, Source: SourcePending}
	} else {
		return Result{Source: SourceNone}
	}

	r.Ignored = p.ignored[r.Tag]
	return r
}

// Classify classifies a single message
func (c *Classifier) Classify(ctx context.Context, msg *models.EmailMessage) (Result, error) {
	pass, err := c.Prepare(ctx, []*models.EmailMessage{msg})
	if err != nil {
		return Result{}, err
	}
	return pass.Classify(msg), nil
}
