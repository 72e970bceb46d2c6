package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// BadgeRepo stores the badge catalog and student possession.
type BadgeRepo interface {
	// Seed inserts catalog badges that are not present yet.
	Seed(ctx context.Context, badges []Badge) error
	ListActive(ctx context.Context) ([]Badge, error)
	Owned(ctx context.Context, studentID string) ([]StudentBadge, error)

	// Award grants a badge. It reports false when the student already
	// had it.
	Award(ctx context.Context, studentID, badgeID string, earnedAt *time.Time) (bool, error)
}

type badgeRepo struct {
	q querier
}

func (r *badgeRepo) Seed(ctx context.Context, badges []Badge) error {
	for _, b := range badges {
		query, args := sqlite().Insert("badges").
			Columns("id", "name", "description", "criteria", "points_cost", "rare", "active").
			Values(b.ID, b.Name, b.Description, string(b.Criteria), b.PointsCost, boolInt(b.Rare), boolInt(b.Active)).
			OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
			Query()
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("seed badge %s: %w", b.ID, err)
		}
	}
	return nil
}

func (r *badgeRepo) ListActive(ctx context.Context) ([]Badge, error) {
	query, args := sqlite().Select("id", "name", "description", "criteria", "points_cost", "rare", "active").
		From(sqlite().Table("badges")).
		Where(entsql.EQ("active", 1)).
		OrderBy("id").
		Query()

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query badges: %w", err)
	}
	defer rows.Close()

	var out []Badge
	for rows.Next() {
		var (
			b            Badge
			criteria     string
			rare, active int
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &criteria, &b.PointsCost, &rare, &active); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		b.Criteria = []byte(criteria)
		b.Rare = rare != 0
		b.Active = active != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *badgeRepo) Owned(ctx context.Context, studentID string) ([]StudentBadge, error) {
	query, args := sqlite().Select("badge_id", "earned_at").
		From(sqlite().Table("student_badges")).
		Where(entsql.EQ("student_id", studentID)).
		OrderBy("badge_id").
		Query()

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query student badges: %w", err)
	}
	defer rows.Close()

	var out []StudentBadge
	for rows.Next() {
		sb := StudentBadge{StudentID: studentID}
		var earned sql.NullString
		if err := rows.Scan(&sb.BadgeID, &earned); err != nil {
			return nil, fmt.Errorf("scan student badge: %w", err)
		}
		if sb.EarnedAt, err = parseNullTime(earned); err != nil {
			return nil, fmt.Errorf("parse earned_at: %w", err)
		}
		out = append(out, sb)
	}
	return out, rows.Err()
}

func (r *badgeRepo) Award(ctx context.Context, studentID, badgeID string, earnedAt *time.Time) (bool, error) {
	query, args := sqlite().Insert("student_badges").
		Columns("student_id", "badge_id", "earned_at").
		Values(studentID, badgeID, formatNullTime(earnedAt)).
		OnConflict(entsql.ConflictColumns("student_id", "badge_id"), entsql.DoNothing()).
		Query()

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
