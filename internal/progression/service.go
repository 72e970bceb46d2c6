package progression

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/speakquest/internal/lock"
	"github.com/abhisek/speakquest/internal/store"
)

// ErrInvalidInput is returned for out-of-range completion input.
var ErrInvalidInput = errors.New("invalid input")

// PassingScore is the minimum score that marks a completion as completed.
const PassingScore = 60

// CompletionInput is a finished attempt submitted by a student.
type CompletionInput struct {
	Score         float64
	TimeSpentSecs int
	Submission    []byte
	Feedback      []byte
}

// Outcome reports the effect of a reward on a student.
type Outcome struct {
	Student      store.Student
	PointsEarned int
	LeveledUp    bool
	NewBadges    []store.Badge
	Completion   *store.Completion
}

// EarnedBadge is a possessed badge. EarnedAt falls back to the query time
// when timestamps are not tracked.
type EarnedBadge struct {
	store.Badge
	EarnedAt time.Time
}

// Service applies completions and conversation awards to stored students.
// Updates for one student are serialized through the locker and written
// in a single transaction.
type Service struct {
	store         *store.Store
	locker        lock.Locker
	trackEarnedAt bool
	now           func() time.Time
	log           *zap.Logger
}

// NewService creates a progression Service. A nil locker uses an
// in-process keyed mutex.
func NewService(st *store.Store, locker lock.Locker, trackEarnedAt bool, log *zap.Logger) *Service {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:         st,
		locker:        locker,
		trackEarnedAt: trackEarnedAt,
		now:           time.Now,
		log:           log.Named("progression"),
	}
}

// SeedBadges inserts the default catalog.
func (s *Service) SeedBadges(ctx context.Context) error {
	return s.store.Badges().Seed(ctx, DefaultBadges())
}

// CompleteActivity records a completion and rewards the student with
// round(score/100 * reward) points.
func (s *Service) CompleteActivity(ctx context.Context, studentID, activityID string, in CompletionInput) (*Outcome, error) {
	if in.Score < 0 || in.Score > 100 || math.IsNaN(in.Score) {
		return nil, fmt.Errorf("%w: score %v outside 0-100", ErrInvalidInput, in.Score)
	}
	if in.TimeSpentSecs < 0 {
		return nil, fmt.Errorf("%w: negative time spent", ErrInvalidInput)
	}

	unlock, err := s.locker.Lock(ctx, "student:"+studentID)
	if err != nil {
		return nil, fmt.Errorf("lock student: %w", err)
	}
	defer unlock()

	var out *Outcome
	err = s.store.WithTx(ctx, func(r store.Repos) error {
		act, err := r.Activities().Get(ctx, activityID)
		if err != nil {
			return err
		}

		now := s.now()
		c := &store.Completion{
			ID:            uuid.NewString(),
			StudentID:     studentID,
			ActivityID:    act.ID,
			SkillArea:     act.SkillArea,
			ActivityKind:  act.Kind,
			Score:         in.Score,
			PointsEarned:  int(math.Round(in.Score / 100 * float64(act.Reward()))),
			TimeSpentSecs: in.TimeSpentSecs,
			Completed:     in.Score >= PassingScore,
			Submission:    in.Submission,
			Feedback:      in.Feedback,
			CreatedAt:     now,
		}

		// Load the student before writing so an unknown id fails the tx.
		if _, err := r.Students().Get(ctx, studentID); err != nil {
			return err
		}
		if err := r.Completions().Append(ctx, c); err != nil {
			return err
		}
		if c.SkillArea != "" {
			if _, err := r.Skills().Record(ctx, studentID, c.SkillArea, c.Score); err != nil {
				return err
			}
		}

		out, err = s.reward(ctx, r, studentID, c.PointsEarned, c.ActivityKind, now)
		if err != nil {
			return err
		}
		out.Completion = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("activity completed",
		zap.String("student_id", studentID),
		zap.String("activity_id", activityID),
		zap.Float64("score", in.Score),
		zap.Int("points", out.PointsEarned),
		zap.Bool("leveled_up", out.LeveledUp),
		zap.Int("new_badges", len(out.NewBadges)))
	return out, nil
}

// AwardConversation credits points earned by an evaluated conversation.
func (s *Service) AwardConversation(ctx context.Context, studentID string, points int) (*Outcome, error) {
	if points < 0 {
		return nil, fmt.Errorf("%w: negative points", ErrInvalidInput)
	}

	unlock, err := s.locker.Lock(ctx, "student:"+studentID)
	if err != nil {
		return nil, fmt.Errorf("lock student: %w", err)
	}
	defer unlock()

	var out *Outcome
	err = s.store.WithTx(ctx, func(r store.Repos) error {
		var err error
		out, err = s.reward(ctx, r, studentID, points, store.KindDialogue, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("conversation points awarded",
		zap.String("student_id", studentID),
		zap.Int("points", points),
		zap.Bool("leveled_up", out.LeveledUp))
	return out, nil
}

// Badges lists the badges a student owns.
func (s *Service) Badges(ctx context.Context, studentID string) ([]EarnedBadge, error) {
	owned, err := s.store.Badges().Owned(ctx, studentID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.store.Badges().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.Badge, len(catalog))
	for _, b := range catalog {
		byID[b.ID] = b
	}

	now := s.now()
	out := make([]EarnedBadge, 0, len(owned))
	for _, sb := range owned {
		b, ok := byID[sb.BadgeID]
		if !ok {
			b = store.Badge{ID: sb.BadgeID}
		}
		at := now
		if sb.EarnedAt != nil {
			at = *sb.EarnedAt
		}
		out = append(out, EarnedBadge{Badge: b, EarnedAt: at})
	}
	return out, nil
}

// reward applies points and streak to the student inside r and awards
// any badges that became eligible.
func (s *Service) reward(ctx context.Context, r store.Repos, studentID string, points int, kind string, now time.Time) (*Outcome, error) {
	st, err := r.Students().Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	next := ApplyCompletionReward(*st, points, kind)
	next = UpdateStreak(next, now)
	next.Proficiency = ProficiencyFor(next.CurrentLevel)

	err = r.Students().ApplyProgress(ctx, studentID, store.ProgressUpdate{
		Points:         points,
		Level:          next.CurrentLevel,
		StreakDays:     next.StreakDays,
		LastActivityAt: next.LastActivityAt,
		Proficiency:    next.Proficiency,
	})
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Student:      next,
		PointsEarned: points,
		LeveledUp:    next.CurrentLevel > st.CurrentLevel,
	}
	if out.NewBadges, err = s.awardBadges(ctx, r, next, now); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) awardBadges(ctx context.Context, r store.Repos, st store.Student, now time.Time) ([]store.Badge, error) {
	catalog, err := r.Badges().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ownedRows, err := r.Badges().Owned(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(ownedRows))
	for _, sb := range ownedRows {
		owned[sb.BadgeID] = true
	}

	stats, err := r.Completions().Stats(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	conversations, err := r.Sessions().CountEvaluated(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	eligible, invalid := EligibleBadges(catalog, owned, CountersFor(st, stats, conversations))
	for _, err := range invalid {
		s.log.Warn("skipping badge", zap.Error(err))
	}

	var earnedAt *time.Time
	if s.trackEarnedAt {
		earnedAt = &now
	}
	var awarded []store.Badge
	for _, b := range eligible {
		ok, err := r.Badges().Award(ctx, st.ID, b.ID, earnedAt)
		if err != nil {
			return nil, err
		}
		if ok {
			awarded = append(awarded, b)
		}
	}
	return awarded, nil
}
