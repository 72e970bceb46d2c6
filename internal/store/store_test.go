package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedStudent(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.Students().Create(context.Background(), &Student{ID: id, FirstName: "Mia", Grade: 3, Age: 8}))
	require.NoError(t, s.Activities().Create(context.Background(), &Activity{
		ID: "act-" + id, Title: "Cafe chat", Kind: "dialogue", SkillArea: "fluency",
	}))
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		var got string
		require.NoError(t, s.DB().QueryRow("PRAGMA "+tt.pragma).Scan(&got))
		assert.Equal(t, tt.want, got, tt.pragma)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "re.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Students().Create(context.Background(), &Student{ID: "s1", FirstName: "Leo"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Students().Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Leo", got.FirstName)
}

func TestStudents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, "s1")

	got, err := s.Students().Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentLevel)
	assert.Equal(t, "beginner", got.Proficiency)
	assert.Nil(t, got.LastActivityAt)

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Students().ApplyProgress(ctx, "s1", ProgressUpdate{
		Points: 40, Level: 1, StreakDays: 1, LastActivityAt: &now, Proficiency: "beginner",
	}))
	require.NoError(t, s.Students().ApplyProgress(ctx, "s1", ProgressUpdate{
		Points: 70, Level: 2, StreakDays: 1, LastActivityAt: &now, Proficiency: "beginner",
	}))

	got, err = s.Students().Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 110, got.TotalPoints)
	assert.Equal(t, 110, got.ExperiencePoints)
	assert.Equal(t, 2, got.CurrentLevel)
	require.NotNil(t, got.LastActivityAt)
	assert.True(t, now.Equal(*got.LastActivityAt))

	_, err = s.Students().Get(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Students().ApplyProgress(ctx, "nobody", ProgressUpdate{}), ErrNotFound)
}

func TestStudents_ConcurrentIncrements(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, "s1")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Students().ApplyProgress(ctx, "s1", ProgressUpdate{Points: 5, Level: 1, StreakDays: 1}))
		}()
	}
	wg.Wait()

	got, err := s.Students().Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 100, got.TotalPoints)
}

func TestActivities(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &Activity{ID: "a1", Title: "Words", Kind: "vocabulary", SkillArea: "vocabulary",
		Difficulty: "beginner", Content: json.RawMessage(`{"type":"vocabulary","words":[]}`)}
	require.NoError(t, s.Activities().Create(ctx, a))

	got, err := s.Activities().Get(ctx, "a1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"vocabulary","words":[]}`, string(got.Content))
	assert.Equal(t, DefaultPointsReward, got.Reward())

	got.PointsReward = 80
	assert.Equal(t, 80, got.Reward())

	_, err = s.Activities().Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompletions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, "s1")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, score := range []float64{50, 60, 70, 80} {
		require.NoError(t, s.Completions().Append(ctx, &Completion{
			ID: fmt.Sprintf("c%d", i), StudentID: "s1", ActivityID: "act-s1",
			SkillArea: "fluency", ActivityKind: "dialogue", Score: score,
			PointsEarned: int(score) / 10, TimeSpentSecs: 60, Completed: score >= 60,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	recent, err := s.Completions().RecentBySkill(ctx, "s1", "fluency", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []float64{80, 70, 60}, []float64{recent[0].Score, recent[1].Score, recent[2].Score})

	n, err := s.Completions().CountBySkill(ctx, "s1", "fluency")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	stats, err := s.Completions().Stats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.ByKind["dialogue"])
	assert.Equal(t, 180, stats.TimeSpentSecs["dialogue"])
	assert.InDelta(t, 70, stats.AvgScore["dialogue"], 1e-9)

	total, err := s.Completions().TotalPoints(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 26, total)
}

func TestSkillProgress_RunningMean(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, "s1")

	_, err := s.Skills().Get(ctx, "s1", "vocabulary")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, score := range []float64{60, 80, 100} {
		_, err := s.Skills().Record(ctx, "s1", "vocabulary", score)
		require.NoError(t, err)
	}
	p, err := s.Skills().Get(ctx, "s1", "vocabulary")
	require.NoError(t, err)
	assert.InDelta(t, 80, p.CurrentScore, 1e-9)
	assert.Equal(t, 3, p.ActivitiesCompleted)
}

func TestSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, "s1")

	now := time.Now()
	sess := &Session{
		ID: "sess1", StudentID: "s1", ActivityID: "act-s1", Scenario: "cafe", Difficulty: "beginner",
		TurnCount: 1, Messages: []Message{{Role: RoleAI, Text: "Hi Mia!", Timestamp: now}},
	}
	require.NoError(t, s.Sessions().Create(ctx, sess))

	got, err := s.Sessions().Get(ctx, "sess1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	require.Len(t, got.Messages, 1)
	assert.Nil(t, got.Evaluation)

	msgs := append(got.Messages,
		Message{Role: RoleStudent, Text: "Hello", Timestamp: now},
		Message{Role: RoleAI, Text: "What would you like?", Timestamp: now})
	require.NoError(t, s.Sessions().SaveTurn(ctx, "sess1", msgs, 2, StatusActive))

	attached, err := s.Sessions().AttachEvaluation(ctx, "sess1", json.RawMessage(`{"overallScore":80}`), 40)
	require.NoError(t, err)
	assert.True(t, attached)

	attached, err = s.Sessions().AttachEvaluation(ctx, "sess1", json.RawMessage(`{"overallScore":10}`), 5)
	require.NoError(t, err)
	assert.False(t, attached)

	got, err = s.Sessions().Get(ctx, "sess1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 2, got.TurnCount)
	assert.Len(t, got.Messages, 3)
	assert.JSONEq(t, `{"overallScore":80}`, string(got.Evaluation))
	assert.Equal(t, 40, got.PointsEarned)
	assert.NotNil(t, got.EndedAt)

	err = s.Sessions().SaveTurn(ctx, "sess1", msgs, 3, StatusActive)
	assert.True(t, errors.Is(err, ErrStaleSession))

	recent, err := s.Sessions().RecentEvaluated(ctx, "s1", 5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	n, err := s.Sessions().CountEvaluated(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Sessions().Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepo_SaveTurnRejectsConcurrentTurn(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, "s1")

	now := time.Now()
	require.NoError(t, s.Sessions().Create(ctx, &Session{
		ID: "sess2", StudentID: "s1", ActivityID: "act-s1", Scenario: "cafe", Difficulty: "beginner",
		TurnCount: 1, Messages: []Message{{Role: RoleAI, Text: "Hi Mia!", Timestamp: now}},
	}))

	// Both writers read turn 1 and try to save turn 2.
	first := []Message{{Role: RoleAI, Text: "Hi Mia!"}, {Role: RoleStudent, Text: "Pizza"}, {Role: RoleAI, Text: "Yum!"}}
	second := []Message{{Role: RoleAI, Text: "Hi Mia!"}, {Role: RoleStudent, Text: "Soup"}, {Role: RoleAI, Text: "Hot!"}}
	require.NoError(t, s.Sessions().SaveTurn(ctx, "sess2", first, 2, StatusActive))
	assert.ErrorIs(t, s.Sessions().SaveTurn(ctx, "sess2", second, 2, StatusActive), ErrStaleSession)

	got, err := s.Sessions().Get(ctx, "sess2")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TurnCount)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "Pizza", got.Messages[1].Text)

	require.NoError(t, s.Sessions().SaveTurn(ctx, "sess2", append(first, Message{Role: RoleStudent, Text: "More"}), 3, StatusActive))
}

func TestSessions_Transition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, "s1")
	require.NoError(t, s.Sessions().Create(ctx, &Session{
		ID: "sess1", StudentID: "s1", ActivityID: "act-s1", Scenario: "cafe", Difficulty: "advanced",
	}))

	ok, err := s.Sessions().Transition(ctx, "sess1", StatusActive, StatusAbandoned)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Sessions().Transition(ctx, "sess1", StatusActive, StatusAbandoned)
	require.NoError(t, err)
	assert.False(t, ok)

	attached, err := s.Sessions().AttachEvaluation(ctx, "sess1", json.RawMessage(`{}`), 10)
	require.NoError(t, err)
	assert.False(t, attached)

	got, err := s.Sessions().Get(ctx, "sess1")
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, got.Status)
}

func TestBadges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, "s1")

	catalog := []Badge{
		{ID: "b1", Name: "First Steps", Criteria: json.RawMessage(`{"type":"activities_completed","value":1}`), Active: true},
		{ID: "b2", Name: "Retired", Criteria: json.RawMessage(`{"type":"total_points","value":1}`), Active: false},
	}
	require.NoError(t, s.Badges().Seed(ctx, catalog))
	require.NoError(t, s.Badges().Seed(ctx, catalog))

	active, err := s.Badges().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b1", active[0].ID)

	now := time.Now()
	awarded, err := s.Badges().Award(ctx, "s1", "b1", &now)
	require.NoError(t, err)
	assert.True(t, awarded)

	awarded, err = s.Badges().Award(ctx, "s1", "b1", nil)
	require.NoError(t, err)
	assert.False(t, awarded)

	owned, err := s.Badges().Owned(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.NotNil(t, owned[0].EarnedAt)
}

func TestWithTx_Rollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(r Repos) error {
		if err := r.Students().Create(ctx, &Student{ID: "tx1", FirstName: "Ana"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Students().Get(ctx, "tx1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev := s.Events()

	require.NoError(t, ev.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "openai", Model: "gpt-4o-mini", Purpose: "conversation-turn",
		InputTokens: 100, OutputTokens: 20, LatencyMs: 300, Success: true,
		RequestBody: "[user]\nhi", ResponseBody: "hello",
	}))
	require.NoError(t, ev.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "openai", Model: "gpt-4o-mini", Purpose: "conversation-turn",
		InputTokens: 50, LatencyMs: 100, ErrorMessage: "timeout",
	}))
	require.NoError(t, ev.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "openai", Model: "gpt-4o-mini", Purpose: "practice-gen", Success: true,
	}))

	all, err := ev.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "practice-gen", all[0].Purpose, "newest first")

	turns, err := ev.QueryLLMEvents(ctx, QueryOpts{Purpose: "conversation-turn", Limit: 1})
	require.NoError(t, err)
	require.Len(t, turns, 1)

	got, err := ev.GetLLMEvent(ctx, all[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.ResponseBody)
	assert.True(t, got.Success)

	_, err = ev.GetLLMEvent(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	usage, err := ev.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, "conversation-turn", usage[0].Purpose)
	assert.Equal(t, 2, usage[0].Requests)
	assert.Equal(t, 1, usage[0].Failures)
	assert.Equal(t, 150, usage[0].InputTokens)
	assert.InDelta(t, 200, usage[0].AvgLatencyMs, 1e-9)
}
