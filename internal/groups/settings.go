package groups

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/mixelka/mailgroups/internal/company"
	"github.com/mixelka/mailgroups/pkg/models"
)

// UpdateCompanySetting upserts the setting of a domain and returns all settings
func (s *Service) UpdateCompanySetting(ctx context.Context, setting models.CompanySetting) (map[string]models.CompanySetting, error) {
	setting.Domain = strings.ToLower(strings.TrimSpace(setting.Domain))
	if setting.Domain == "" {
		return nil, errors.New("domain is required")
	}
	setting.Name = strings.TrimSpace(setting.Name)

	if err := s.db.UpsertCompany(ctx, setting); err != nil {
		return nil, err
	}
	return s.db.Companies(ctx)
}

// UpdateGroupResponsibility sets the responsible party of a group and
// returns all group configs. An empty responsible clears it.
func (s *Service) UpdateGroupResponsibility(ctx context.Context, tag, responsible string) (map[string]models.GroupConfig, error) {
	if tag == "" {
		return nil, errors.New("tag is required")
	}

	cfg := models.GroupConfig{Name: tag, Responsible: strings.TrimSpace(responsible)}
	if err := s.db.UpsertGroupConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return s.db.GroupConfigs(ctx)
}

// CompanySettings returns all company settings keyed by domain
func (s *Service) CompanySettings(ctx context.Context) (map[string]models.CompanySetting, error) {
	return s.db.Companies(ctx)
}

// GroupConfigs returns all group configs keyed by group name
func (s *Service) GroupConfigs(ctx context.Context) (map[string]models.GroupConfig, error) {
	return s.db.GroupConfigs(ctx)
}

// IgnoredGroups returns the names of unfollowed groups, sorted
func (s *Service) IgnoredGroups(ctx context.Context) ([]string, error) {
	set, err := s.db.IgnoredGroups(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Domains lists every domain seen in committed messages of enabled accounts
// together with its setting, for the company settings view
func (s *Service) Domains(ctx context.Context) ([]company.DomainInfo, error) {
	accounts, err := s.db.GetEnabledAccounts(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	messages, err := s.db.GetMessagesForAccounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	companies, err := s.db.Companies(ctx)
	if err != nil {
		return nil, err
	}
	return company.NewResolver(companies).Domains(messages), nil
}
