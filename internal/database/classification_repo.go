package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mixelka/mailgroups/pkg/models"
)

// LearnedSubjects returns the learned subject -> group map
func (db *DB) LearnedSubjects(ctx context.Context) (map[string]string, error) {
	var rows []models.SubjectMapping
	if err := db.SelectContext(ctx, &rows, `SELECT subject, group_name FROM subject_map`); err != nil {
		return nil, fmt.Errorf("failed to get subject map: %w", err)
	}

	subjects := make(map[string]string, len(rows))
	for _, r := range rows {
		subjects[r.Subject] = r.GroupName
	}
	return subjects, nil
}

// LearnSubject upserts a subject -> group mapping (last write wins)
func (db *DB) LearnSubject(ctx context.Context, subject, group string) error {
	query := `
		INSERT INTO subject_map (subject, group_name) VALUES (?, ?)
		ON CONFLICT(subject) DO UPDATE SET group_name = excluded.group_name
	`
	if _, err := db.ExecContext(ctx, query, subject, group); err != nil {
		return fmt.Errorf("failed to learn subject: %w", err)
	}
	return nil
}

// IgnoredGroups returns the set of ignored group names
func (db *DB) IgnoredGroups(ctx context.Context) (map[string]bool, error) {
	var names []string
	if err := db.SelectContext(ctx, &names, `SELECT name FROM ignored_groups ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to get ignored groups: %w", err)
	}

	ignored := make(map[string]bool, len(names))
	for _, n := range names {
		ignored[n] = true
	}
	return ignored, nil
}

// UnfollowGroup ignores group and, with forget, removes its learned subjects
// in the same transaction. It returns the number of subjects forgotten.
func (db *DB) UnfollowGroup(ctx context.Context, group string, forget bool) (int64, error) {
	var forgotten int64
	err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO ignored_groups (name) VALUES (?)`, group); err != nil {
			return fmt.Errorf("failed to ignore group: %w", err)
		}
		if !forget {
			return nil
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM subject_map WHERE group_name = ?`, group)
		if err != nil {
			return fmt.Errorf("failed to forget subjects: %w", err)
		}
		forgotten, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return forgotten, nil
}
