package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// CompletionRepo is the append-only activity completion history.
type CompletionRepo interface {
	Append(ctx context.Context, c *Completion) error

	// RecentBySkill returns up to limit completions for the skill area,
	// most recent first.
	RecentBySkill(ctx context.Context, studentID, skillArea string, limit int) ([]Completion, error)

	// CountBySkill returns the total number of completions for the skill area.
	CountBySkill(ctx context.Context, studentID, skillArea string) (int, error)

	// Stats aggregates a student's history by activity kind.
	Stats(ctx context.Context, studentID string) (*CompletionStats, error)

	// TotalPoints sums points earned across the student's completions.
	TotalPoints(ctx context.Context, studentID string) (int, error)
}

var completionColumns = []string{
	"id", "student_id", "activity_id", "skill_area", "activity_kind", "score",
	"points_earned", "time_spent_secs", "completed", "submission", "feedback", "created_at",
}

type completionRepo struct {
	q querier
}

func (r *completionRepo) Append(ctx context.Context, c *Completion) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	query, args := sqlite().Insert("activity_completions").
		Columns(completionColumns...).
		Values(c.ID, c.StudentID, c.ActivityID, c.SkillArea, c.ActivityKind, c.Score,
			c.PointsEarned, c.TimeSpentSecs, boolInt(c.Completed),
			nullJSON(c.Submission), nullJSON(c.Feedback), formatTime(c.CreatedAt)).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

func (r *completionRepo) RecentBySkill(ctx context.Context, studentID, skillArea string, limit int) ([]Completion, error) {
	sel := sqlite().Select(completionColumns...).
		From(sqlite().Table("activity_completions")).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("skill_area", skillArea),
		)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("seq"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var (
			c                    Completion
			completed            int
			submission, feedback sql.NullString
			createdAt            string
		)
		if err := rows.Scan(&c.ID, &c.StudentID, &c.ActivityID, &c.SkillArea, &c.ActivityKind,
			&c.Score, &c.PointsEarned, &c.TimeSpentSecs, &completed, &submission, &feedback,
			&createdAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		c.Completed = completed != 0
		if submission.Valid {
			c.Submission = []byte(submission.String)
		}
		if feedback.Valid {
			c.Feedback = []byte(feedback.String)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *completionRepo) CountBySkill(ctx context.Context, studentID, skillArea string) (int, error) {
	query, args := sqlite().Select(entsql.Count("*")).
		From(sqlite().Table("activity_completions")).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("skill_area", skillArea),
		)).
		Query()

	var n int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return n, nil
}

func (r *completionRepo) Stats(ctx context.Context, studentID string) (*CompletionStats, error) {
	query, args := sqlite().Select(
		"activity_kind",
		entsql.Count("*"),
		entsql.Sum("time_spent_secs"),
		entsql.Avg("score"),
	).
		From(sqlite().Table("activity_completions")).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("completed", 1),
		)).
		GroupBy("activity_kind").
		Query()

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completion stats: %w", err)
	}
	defer rows.Close()

	stats := &CompletionStats{
		ByKind:        map[string]int{},
		TimeSpentSecs: map[string]int{},
		AvgScore:      map[string]float64{},
	}
	for rows.Next() {
		var (
			kind  string
			count int
			secs  sql.NullInt64
			avg   sql.NullFloat64
		)
		if err := rows.Scan(&kind, &count, &secs, &avg); err != nil {
			return nil, fmt.Errorf("scan completion stats: %w", err)
		}
		stats.Total += count
		stats.ByKind[kind] = count
		stats.TimeSpentSecs[kind] = int(secs.Int64)
		stats.AvgScore[kind] = avg.Float64
	}
	return stats, rows.Err()
}

func (r *completionRepo) TotalPoints(ctx context.Context, studentID string) (int, error) {
	query, args := sqlite().Select(entsql.Sum("points_earned")).
		From(sqlite().Table("activity_completions")).
		Where(entsql.EQ("student_id", studentID)).
		Query()

	var n sql.NullInt64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sum completion points: %w", err)
	}
	return int(n.Int64), nil
}
