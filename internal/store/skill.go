package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// SkillProgressRepo keeps the long-run mean per skill area.
type SkillProgressRepo interface {
	Get(ctx context.Context, studentID, skillArea string) (*SkillProgress, error)

	// Record folds score into the running mean. Call inside a transaction.
	Record(ctx context.Context, studentID, skillArea string, score float64) (*SkillProgress, error)
}

type skillRepo struct {
	q querier
}

func (r *skillRepo) Get(ctx context.Context, studentID, skillArea string) (*SkillProgress, error) {
	query, args := sqlite().Select("current_score", "activities_completed", "updated_at").
		From(sqlite().Table("skill_progress")).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("skill_area", skillArea),
		)).
		Query()

	p := SkillProgress{StudentID: studentID, SkillArea: skillArea}
	var updatedAt string
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&p.CurrentScore, &p.ActivitiesCompleted, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("skill progress %s/%s: %w", studentID, skillArea, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query skill progress: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &p, nil
}

func (r *skillRepo) Record(ctx context.Context, studentID, skillArea string, score float64) (*SkillProgress, error) {
	now := time.Now()
	cur, err := r.Get(ctx, studentID, skillArea)
	switch {
	case errors.Is(err, ErrNotFound):
		query, args := sqlite().Insert("skill_progress").
			Columns("student_id", "skill_area", "current_score", "activities_completed", "updated_at").
			Values(studentID, skillArea, score, 1, formatTime(now)).
			Query()
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("insert skill progress: %w", err)
		}
		return &SkillProgress{StudentID: studentID, SkillArea: skillArea, CurrentScore: score, ActivitiesCompleted: 1, UpdatedAt: now}, nil
	case err != nil:
		return nil, err
	}

	n := cur.ActivitiesCompleted
	cur.CurrentScore = (cur.CurrentScore*float64(n) + score) / float64(n+1)
	cur.ActivitiesCompleted = n + 1
	cur.UpdatedAt = now

	query, args := sqlite().Update("skill_progress").
		Set("current_score", cur.CurrentScore).
		Set("activities_completed", cur.ActivitiesCompleted).
		Set("updated_at", formatTime(now)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("skill_area", skillArea),
		)).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update skill progress: %w", err)
	}
	return cur, nil
}
