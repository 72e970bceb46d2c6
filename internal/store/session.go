package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// ErrStaleSession is returned by SaveTurn when the session left the
// active state or advanced between read and write.
var ErrStaleSession = errors.New("session is no longer active")

// SessionRepo stores conversation sessions.
type SessionRepo interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)

	// SaveTurn writes the message log, turn counter and status of an
	// active session whose stored counter is turnCount-1. It returns
	// ErrStaleSession when the session is no longer active or another
	// turn was saved first.
	SaveTurn(ctx context.Context, id string, messages []Message, turnCount int, status string) error

	// AttachEvaluation stores the evaluation and marks the session
	// completed, but only if no evaluation is attached yet and the
	// session was not abandoned. It reports whether this call attached it.
	AttachEvaluation(ctx context.Context, id string, evaluation json.RawMessage, points int) (bool, error)

	// Transition moves a session from one status to another. It reports
	// whether the session was in the from status.
	Transition(ctx context.Context, id, from, to string) (bool, error)

	// RecentEvaluated returns the student's most recently updated
	// completed sessions that carry an evaluation.
	RecentEvaluated(ctx context.Context, studentID string, limit int) ([]Session, error)

	// CountEvaluated counts the student's sessions that carry an evaluation.
	CountEvaluated(ctx context.Context, studentID string) (int, error)
}

var sessionColumns = []string{
	"id", "student_id", "activity_id", "scenario", "difficulty", "status", "turn_count",
	"messages", "evaluation", "points_earned", "created_at", "updated_at", "ended_at",
}

type sessionRepo struct {
	q querier
}

func (r *sessionRepo) Create(ctx context.Context, s *Session) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt
	if s.Status == "" {
		s.Status = StatusActive
	}
	msgs, err := marshalMessages(s.Messages)
	if err != nil {
		return err
	}

	query, args := sqlite().Insert("conversation_sessions").
		Columns(sessionColumns...).
		Values(s.ID, s.StudentID, s.ActivityID, s.Scenario, s.Difficulty, s.Status, s.TurnCount,
			msgs, nullJSON(s.Evaluation), s.PointsEarned, formatTime(s.CreatedAt),
			formatTime(s.UpdatedAt), formatNullTime(s.EndedAt)).
		Query()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*Session, error) {
	query, args := sqlite().Select(sessionColumns...).
		From(sqlite().Table("conversation_sessions")).
		Where(entsql.EQ("id", id)).
		Query()

	s, err := scanSession(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, err
}

func (r *sessionRepo) SaveTurn(ctx context.Context, id string, messages []Message, turnCount int, status string) error {
	msgs, err := marshalMessages(messages)
	if err != nil {
		return err
	}
	now := time.Now()
	upd := sqlite().Update("conversation_sessions").
		Set("messages", msgs).
		Set("turn_count", turnCount).
		Set("status", status).
		Set("updated_at", formatTime(now))
	if status != StatusActive {
		upd.Set("ended_at", formatTime(now))
	}
	query, args := upd.Where(entsql.And(
		entsql.EQ("id", id),
		entsql.EQ("status", StatusActive),
		entsql.EQ("turn_count", turnCount-1),
	)).Query()

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleSession
	}
	return nil
}

func (r *sessionRepo) AttachEvaluation(ctx context.Context, id string, evaluation json.RawMessage, points int) (bool, error) {
	now := formatTime(time.Now())
	query, args := sqlite().Update("conversation_sessions").
		Set("evaluation", string(evaluation)).
		Set("points_earned", points).
		Set("status", StatusCompleted).
		Set("updated_at", now).
		Set("ended_at", now).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.IsNull("evaluation"),
			entsql.NEQ("status", StatusAbandoned),
		)).
		Query()

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("attach evaluation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attach evaluation: %w", err)
	}
	return n == 1, nil
}

func (r *sessionRepo) Transition(ctx context.Context, id, from, to string) (bool, error) {
	now := formatTime(time.Now())
	query, args := sqlite().Update("conversation_sessions").
		Set("status", to).
		Set("updated_at", now).
		Set("ended_at", now).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", from),
		)).
		Query()

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition session: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *sessionRepo) RecentEvaluated(ctx context.Context, studentID string, limit int) ([]Session, error) {
	query, args := sqlite().Select(sessionColumns...).
		From(sqlite().Table("conversation_sessions")).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("status", StatusCompleted),
			entsql.NotNull("evaluation"),
		)).
		OrderBy(entsql.Desc("updated_at")).
		Limit(limit).
		Query()

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *sessionRepo) CountEvaluated(ctx context.Context, studentID string) (int, error) {
	query, args := sqlite().Select(entsql.Count("*")).
		From(sqlite().Table("conversation_sessions")).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.NotNull("evaluation"),
		)).
		Query()

	var n int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s                    Session
		msgs                 string
		evaluation, endedAt  sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&s.ID, &s.StudentID, &s.ActivityID, &s.Scenario, &s.Difficulty, &s.Status,
		&s.TurnCount, &msgs, &evaluation, &s.PointsEarned, &createdAt, &updatedAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(msgs), &s.Messages); err != nil {
		return nil, fmt.Errorf("decode session messages: %w", err)
	}
	if evaluation.Valid {
		s.Evaluation = json.RawMessage(evaluation.String)
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if s.EndedAt, err = parseNullTime(endedAt); err != nil {
		return nil, fmt.Errorf("parse ended_at: %w", err)
	}
	return &s, nil
}

func marshalMessages(msgs []Message) (string, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("encode session messages: %w", err)
	}
	return string(b), nil
}
