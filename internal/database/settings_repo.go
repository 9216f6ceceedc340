package database

import (
	"context"
	"fmt"

	"github.com/mixelka/mailgroups/pkg/models"
)

// UpsertCompany creates or replaces the setting of a domain
func (db *DB) UpsertCompany(ctx context.Context, c models.CompanySetting) error {
	query := `
		INSERT INTO companies (domain, name, hidden, responsible) VALUES (?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			name = excluded.name,
			hidden = excluded.hidden,
			responsible = excluded.responsible
	`
	if _, err := db.ExecContext(ctx, query, c.Domain, c.Name, c.Hidden, c.Responsible); err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	return nil
}

// Companies returns all company settings keyed by domain
func (db *DB) Companies(ctx context.Context) (map[string]models.CompanySetting, error) {
	var rows []models.CompanySetting
	if err := db.SelectContext(ctx, &rows, `SELECT domain, name, hidden, responsible FROM companies`); err != nil {
		return nil, fmt.Errorf("failed to get companies: %w", err)
	}

	companies := make(map[string]models.CompanySetting, len(rows))
	for _, c := range rows {
		companies[c.Domain] = c
	}
	return companies, nil
}

// UpsertGroupConfig creates or replaces the config of a group
func (db *DB) UpsertGroupConfig(ctx context.Context, g models.GroupConfig) error {
	query := `
		INSERT INTO group_configs (name, responsible) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET responsible = excluded.responsible
	`
	if _, err := db.ExecContext(ctx, query, g.Name, g.Responsible); err != nil {
		return fmt.Errorf("failed to upsert group config: %w", err)
	}
	return nil
}

// GroupConfigs returns all group configs keyed by group name
func (db *DB) GroupConfigs(ctx context.Context) (map[string]models.GroupConfig, error) {
	var rows []models.GroupConfig
	if err := db.SelectContext(ctx, &rows, `SELECT name, responsible FROM group_configs`); err != nil {
		return nil, fmt.Errorf("failed to get group configs: %w", err)
	}

	configs := make(map[string]models.GroupConfig, len(rows))
	for _, g := range rows {
		configs[g.Name] = g
	}
	return configs, nil
}
