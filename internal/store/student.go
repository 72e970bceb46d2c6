package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// StudentRepo reads and updates student profiles.
type StudentRepo interface {
	Create(ctx context.Context, s *Student) error
	Get(ctx context.Context, id string) (*Student, error)

	// ApplyProgress atomically adds points to the counters and writes the
	// recomputed level, streak and proficiency label.
	ApplyProgress(ctx context.Context, id string, u ProgressUpdate) error
}

// ProgressUpdate is the delta written by ApplyProgress.
type ProgressUpdate struct {
	Points         int
	Level          int
	StreakDays     int
	LastActivityAt *time.Time
	Proficiency    string
}

var studentColumns = []string{
	"id", "first_name", "grade", "age", "total_points", "current_level",
	"experience_points", "streak_days", "last_activity_at", "proficiency", "created_at",
}

type studentRepo struct {
	q querier
}

func (r *studentRepo) Create(ctx context.Context, s *Student) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.CurrentLevel == 0 {
		s.CurrentLevel = 1
	}
	if s.Proficiency == "" {
		s.Proficiency = "beginner"
	}

	query, args := sqlite().Insert("students").
		Columns(studentColumns...).
		Values(s.ID, s.FirstName, s.Grade, s.Age, s.TotalPoints, s.CurrentLevel,
			s.ExperiencePoints, s.StreakDays, formatNullTime(s.LastActivityAt), s.Proficiency,
			formatTime(s.CreatedAt)).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

func (r *studentRepo) Get(ctx context.Context, id string) (*Student, error) {
	query, args := sqlite().Select(studentColumns...).
		From(sqlite().Table("students")).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		s         Student
		last      sql.NullString
		createdAt string
	)
	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&s.ID, &s.FirstName, &s.Grade, &s.Age, &s.TotalPoints, &s.CurrentLevel,
		&s.ExperiencePoints, &s.StreakDays, &last, &s.Proficiency, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}

	if s.LastActivityAt, err = parseNullTime(last); err != nil {
		return nil, fmt.Errorf("parse last_activity_at: %w", err)
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &s, nil
}

func (r *studentRepo) ApplyProgress(ctx context.Context, id string, u ProgressUpdate) error {
	query, args := sqlite().Update("students").
		Add("total_points", u.Points).
		Add("experience_points", u.Points).
		Set("current_level", u.Level).
		Set("streak_days", u.StreakDays).
		Set("last_activity_at", formatNullTime(u.LastActivityAt)).
		Set("proficiency", u.Proficiency).
		Where(entsql.EQ("id", id)).
		Query()

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update student progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	return nil
}
