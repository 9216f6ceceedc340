// Package company attributes groups of messages to the organisations
// taking part in them, based on participant email domains.
package company

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mixelka/mailgroups/pkg/models"
)

const (
	// CatchAll names the company of a group without any non-generic domain
	CatchAll = "Other/General"
	// OtherPeople labels participants using consumer email providers
	OtherPeople = "Other"
)

var genericDomains = map[string]bool{
	"gmail.com":      true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"msn.com":        true,
	"icloud.com":     true,
	"uol.com.br":     true,
	"bol.com.br":     true,
	"terra.com.br":   true,
	"ig.com.br":      true,
	"aol.com":        true,
	"protonmail.com": true,
}

var (
	addressRegex   = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z0-9._-]+\.[a-zA-Z0-9._-]+`)
	imageExtRegex  = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif|bmp|webp)@`)
	contentIDRegex = regexp.MustCompile(`(?i)^(image|cid)[0-9._-]*@`)
	nameSplitRegex = regexp.MustCompile(`[._-]`)
)

// IsGeneric reports whether domain is a consumer email provider
func IsGeneric(domain string) bool {
	return genericDomains[domain]
}

// ExtractAddresses returns the unique, lower-cased addresses referenced in
// text plus the first address of from, in first-seen order. Inline image and
// content-id artifacts are dropped.
func ExtractAddresses(text, from string) []string {
	matches := addressRegex.FindAllString(text, -1)
	if sender := addressRegex.FindString(from); sender != "" {
		matches = append(matches, sender)
	}

	seen := make(map[string]bool, len(matches))
	addrs := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.ToLower(m)
		if seen[m] || imageExtRegex.MatchString(m) || contentIDRegex.MatchString(m) {
			continue
		}
		seen[m] = true
		addrs = append(addrs, m)
	}
	return addrs
}

// Domain returns the lower-cased domain of addr
func Domain(addr string) string {
	_, domain, ok := strings.Cut(addr, "@")
	if !ok {
		return ""
	}
	return strings.ToLower(domain)
}

// Resolver resolves company names using operator settings keyed by domain
type Resolver struct {
	settings map[string]models.CompanySetting
}

// NewResolver creates a resolver over a snapshot of company settings
func NewResolver(settings map[string]models.CompanySetting) *Resolver {
	if settings == nil {
		settings = map[string]models.CompanySetting{}
	}
	return &Resolver{settings: settings}
}

func (r *Resolver) hidden(domain string) bool {
	return r.settings[domain].Hidden
}

func (r *Resolver) alias(domain string) string {
	return r.settings[domain].Name
}

// Resolve returns the display company of a group of messages: the most
// referenced non-generic, non-hidden domain, shown by its alias or with the
// first letter capitalised. Ties go to the domain seen first.
func (r *Resolver) Resolve(messages []*models.EmailMessage) string {
	counts := map[string]int{}
	var order []string
	for _, msg := range messages {
		for _, addr := range ExtractAddresses(msg.BodyText, msg.From) {
			d := Domain(addr)
			if d == "" || IsGeneric(d) || r.hidden(d) {
				continue
			}
			if counts[d] == 0 {
				order = append(order, d)
			}
			counts[d]++
		}
	}

	if len(order) == 0 {
		return CatchAll
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	primary := order[0]

	if name := r.alias(primary); name != "" {
		return name
	}
	return strings.ToUpper(primary[:1]) + primary[1:]
}

// ParticipantGroup lists the people of one company taking part in a group
type ParticipantGroup struct {
	Company string
	People  []string
}

// Participants returns the people referenced in messages grouped by company
// label: the domain alias, OtherPeople for generic providers, else the
// domain. Hidden domains are left out. Labels are sorted alphabetically with
// OtherPeople last.
func (r *Resolver) Participants(messages []*models.EmailMessage) []ParticipantGroup {
	byLabel := map[string][]string{}
	seen := map[string]bool{}
	for _, msg := range messages {
		for _, addr := range ExtractAddresses(msg.BodyText, msg.From) {
			d := Domain(addr)
			if seen[addr] || r.hidden(d) {
				continue
			}
			seen[addr] = true

			label := d
			if name := r.alias(d); name != "" {
				label = name
			} else if IsGeneric(d) {
				label = OtherPeople
			}
			byLabel[label] = append(byLabel[label], FormatName(addr))
		}
	}

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sortLast(labels, OtherPeople)

	groups := make([]ParticipantGroup, 0, len(labels))
	for _, l := range labels {
		groups = append(groups, ParticipantGroup{Company: l, People: byLabel[l]})
	}
	return groups
}

// FormatName turns the local part of addr into a display name:
// "alexandre.fusco@x.com" becomes "Alexandre Fusco".
func FormatName(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	parts := nameSplitRegex.Split(local, -1)
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		words = append(words, strings.ToUpper(p[:1])+p[1:])
	}
	return strings.Join(words, " ")
}

// DomainInfo describes one domain for the company settings view
type DomainInfo struct {
	Domain  string
	Setting models.CompanySetting
	Generic bool
}

// Domains returns every domain referenced in messages plus every configured
// domain, sorted. Hidden domains are included so they can be shown again.
func (r *Resolver) Domains(messages []*models.EmailMessage) []DomainInfo {
	set := map[string]bool{}
	for _, msg := range messages {
		for _, addr := range ExtractAddresses(msg.BodyText, msg.From) {
			if d := Domain(addr); d != "" {
				set[d] = true
			}
		}
	}
	for d := range r.settings {
		set[d] = true
	}

	domains := make([]string, 0, len(set))
	for d := range set {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	infos := make([]DomainInfo, 0, len(domains))
	for _, d := range domains {
		setting := r.settings[d]
		setting.Domain = d
		infos = append(infos, DomainInfo{Domain: d, Setting: setting, Generic: IsGeneric(d)})
	}
	return infos
}

// CompanyGroups is the set of groups attributed to one company
type CompanyGroups struct {
	Company string
	Groups  []models.Group
}

// ByCompany buckets groups by their company, companies sorted alphabetically
// with CatchAll last. Group order within a company is preserved.
func ByCompany(groups []models.Group) []CompanyGroups {
	byName := map[string][]models.Group{}
	for _, g := range groups {
		byName[g.Company] = append(byName[g.Company], g)
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sortLast(names, CatchAll)

	out := make([]CompanyGroups, 0, len(names))
	for _, n := range names {
		out = append(out, CompanyGroups{Company: n, Groups: byName[n]})
	}
	return out
}

// sortLast sorts names with locale-aware collation, keeping last at the end
func sortLast(names []string, last string) {
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(names, func(i, j int) bool {
		if names[i] == last || names[j] == last {
			return names[j] == last && names[i] != last
		}
		return c.CompareString(names[i], names[j]) < 0
	})
}
