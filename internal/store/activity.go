package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// DefaultPointsReward applies to activities stored without a reward.
const DefaultPointsReward = 50

// ActivityRepo stores activities.
type ActivityRepo interface {
	Create(ctx context.Context, a *Activity) error
	Get(ctx context.Context, id string) (*Activity, error)
}

var activityColumns = []string{
	"id", "title", "kind", "skill_area", "difficulty", "points_reward", "content", "created_at",
}

type activityRepo struct {
	q querier
}

// Reward returns the activity's point reward, defaulting unset rewards.
func (a *Activity) Reward() int {
	if a == nil || a.PointsReward <= 0 {
		return DefaultPointsReward
	}
	return a.PointsReward
}

func (r *activityRepo) Create(ctx context.Context, a *Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	query, args := sqlite().Insert("activities").
		Columns(activityColumns...).
		Values(a.ID, a.Title, a.Kind, a.SkillArea, a.Difficulty, a.PointsReward,
			nullJSON(a.Content), formatTime(a.CreatedAt)).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *activityRepo) Get(ctx context.Context, id string) (*Activity, error) {
	query, args := sqlite().Select(activityColumns...).
		From(sqlite().Table("activities")).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		a         Activity
		content   sql.NullString
		createdAt string
	)
	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Title, &a.Kind, &a.SkillArea, &a.Difficulty, &a.PointsReward, &content, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	if content.Valid {
		a.Content = []byte(content.String)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &a, nil
}
