package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/speakquest/internal/gateway"
	"github.com/abhisek/speakquest/internal/llm"
	"github.com/abhisek/speakquest/internal/store"
)

const evalJSON = `{"grammarScore":80,"vocabularyScore":75,"coherenceScore":85,"fluencyScore":80,
"overallScore":80,"strengths":["Polite"],"improvements":[],"suggestions":[],
"grammarMistakes":[],"vocabularyUsed":["menu"],"conversationQuality":"good"}`

func newTestService(t *testing.T, mock *llm.MockProvider) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "conversation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Students().Create(ctx, &store.Student{ID: "s1", FirstName: "Mia", Grade: 3}))
	require.NoError(t, st.Students().Create(ctx, &store.Student{ID: "s2", FirstName: "Leo", Grade: 5}))
	require.NoError(t, st.Activities().Create(ctx, &store.Activity{
		ID: "cafe", Title: "At the cafe", Kind: store.KindDialogue, SkillArea: "fluency",
	}))

	return NewService(st, gateway.New(mock, time.Second, nil), nil, nil), st
}

func start(t *testing.T, svc *Service, difficulty string) *store.Session {
	t.Helper()
	sess, err := svc.Start(context.Background(), "s1", StartInput{
		ActivityID: "cafe", Scenario: "restaurant", Difficulty: difficulty,
	})
	require.NoError(t, err)
	return sess
}

func TestOpeningLine(t *testing.T) {
	assert.Equal(t, "Hi Mia! Welcome to our restaurant. What would you like to eat?",
		OpeningLine("restaurant", DifficultyBeginner, "Mia"))
	assert.Contains(t, OpeningLine("Restaurant", DifficultyAdvanced, "Mia"), "specials")
	assert.Equal(t, "Hi Leo! Let's talk. How are you today?", OpeningLine("space", "", "Leo"))
}

func TestTurnLimit(t *testing.T) {
	assert.Equal(t, 8, TurnLimit(DifficultyBeginner))
	assert.Equal(t, 12, TurnLimit(DifficultyIntermediate))
	assert.Equal(t, 16, TurnLimit(DifficultyAdvanced))
	assert.Equal(t, 10, TurnLimit("expert"))
}

func TestStart(t *testing.T) {
	mock := llm.NewMockProvider()
	svc, st := newTestService(t, mock)
	ctx := context.Background()

	sess := start(t, svc, DifficultyBeginner)
	assert.Equal(t, 1, sess.TurnCount)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, store.RoleAI, sess.Messages[0].Role)
	assert.Contains(t, sess.Messages[0].Text, "Mia")
	assert.Zero(t, mock.CallCount(), "opening line needs no model call")

	got, err := st.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, got.Status)

	// Difficulty defaults to the student's proficiency.
	def, err := svc.Start(ctx, "s1", StartInput{ActivityID: "cafe"})
	require.NoError(t, err)
	assert.Equal(t, "beginner", def.Difficulty)
	assert.Equal(t, defaultScenario, def.Scenario)

	_, err = svc.Start(ctx, "s1", StartInput{ActivityID: "nope"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = svc.Start(ctx, "ghost", StartInput{ActivityID: "cafe"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendMessage(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("  Great choice! Anything to drink?  "))
	svc, st := newTestService(t, mock)
	ctx := context.Background()
	sess := start(t, svc, DifficultyBeginner)

	res, err := svc.SendMessage(ctx, sess.ID, "s1", "I want pizza please")
	require.NoError(t, err)
	assert.Equal(t, "Great choice! Anything to drink?", res.AIResponse)
	assert.Equal(t, 2, res.TurnCount)
	assert.False(t, res.ShouldEnd)

	req, ok := mock.LastCall()
	require.True(t, ok)
	require.Len(t, req.Messages, 1, "greeting is not sent as history")
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, "I want pizza please", req.Messages[0].Content)
	assert.Equal(t, 0.8, req.Temperature)
	assert.Equal(t, 150, req.MaxTokens)
	assert.Contains(t, req.System, "Mia")
	assert.Contains(t, req.System, "grade 3")
	assert.Contains(t, req.System, "restaurant")

	got, err := st.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TurnCount)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, store.RoleStudent, got.Messages[1].Role)
	assert.Equal(t, store.RoleAI, got.Messages[2].Role)

	_, err = svc.SendMessage(ctx, sess.ID, "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendMessage_HistoryAlternates(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("One"), llm.MockText("Two"))
	svc, _ := newTestService(t, mock)
	ctx := context.Background()
	sess := start(t, svc, DifficultyIntermediate)

	_, err := svc.SendMessage(ctx, sess.ID, "s1", "first")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, sess.ID, "s1", "second")
	require.NoError(t, err)

	req, _ := mock.LastCall()
	require.Len(t, req.Messages, 3)
	assert.Equal(t, []llm.Role{llm.RoleUser, llm.RoleAssistant, llm.RoleUser},
		[]llm.Role{req.Messages[0].Role, req.Messages[1].Role, req.Messages[2].Role})
	assert.Equal(t, "One", req.Messages[1].Content)
}

func TestSendMessage_BeginnerTurnLimit(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Fallback = func(llm.Request) llm.MockResponse { return llm.MockText("Nice!") }
	svc, st := newTestService(t, mock)
	ctx := context.Background()
	sess := start(t, svc, DifficultyBeginner)

	var res *TurnResult
	for i := 2; i <= 8; i++ {
		var err error
		res, err = svc.SendMessage(ctx, sess.ID, "s1", "hello")
		require.NoError(t, err)
		assert.Equal(t, i, res.TurnCount)
		assert.Equal(t, i == 8, res.ShouldEnd, "turn %d", i)
	}

	got, err := st.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Nil(t, got.Evaluation, "ending is not automatic")

	_, err = svc.SendMessage(ctx, sess.ID, "s1", "one more")
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestSendMessage_NotOwner(t *testing.T) {
	svc, _ := newTestService(t, llm.NewMockProvider(llm.MockText("hi")))
	ctx := context.Background()
	sess := start(t, svc, DifficultyBeginner)

	_, err := svc.SendMessage(ctx, sess.ID, "s2", "hello")
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = svc.Get(ctx, sess.ID, "s2")
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = svc.End(ctx, sess.ID, "s2")
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.SendMessage(ctx, "missing", "s1", "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendMessage_ChatFailureLeavesSessionUnchanged(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("connection reset")})
	svc, st := newTestService(t, mock)
	ctx := context.Background()
	sess := start(t, svc, DifficultyBeginner)

	_, err := svc.SendMessage(ctx, sess.ID, "s1", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrChatFailed)

	got, err := st.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TurnCount)
	assert.Len(t, got.Messages, 1)
	assert.Equal(t, store.StatusActive, got.Status)
}

func TestEnd_Idempotent(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("Lovely!"), llm.MockText(evalJSON))
	svc, st := newTestService(t, mock)
	ctx := context.Background()
	sess := start(t, svc, DifficultyBeginner)

	_, err := svc.SendMessage(ctx, sess.ID, "s1", "A juice please")
	require.NoError(t, err)

	res, err := svc.End(ctx, sess.ID, "s1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyEvaluated)
	assert.Equal(t, 80.0, res.Evaluation.OverallScore)
	assert.Equal(t, 40, res.PointsEarned)

	req, _ := mock.LastCall()
	assert.Contains(t, req.Messages[0].Content, "A juice please")

	calls := mock.CallCount()
	again, err := svc.End(ctx, sess.ID, "s1")
	require.NoError(t, err)
	assert.True(t, again.AlreadyEvaluated)
	assert.Equal(t, 40, again.PointsEarned)
	assert.Equal(t, res.Evaluation, again.Evaluation)
	assert.Equal(t, calls, mock.CallCount(), "no model call on repeat")

	got, err := st.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.NotNil(t, got.EndedAt)
}

func TestEnd_FallbackEvaluation(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("timeout")}})
	svc, _ := newTestService(t, mock)
	sess := start(t, svc, DifficultyBeginner)

	res, err := svc.End(context.Background(), sess.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, gateway.DefaultEvaluation(), res.Evaluation)
	assert.Equal(t, 35, res.PointsEarned)
}

func TestEnd_ConcurrentEvaluatesOnce(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Fallback = func(llm.Request) llm.MockResponse { return llm.MockText(evalJSON) }
	svc, _ := newTestService(t, mock)
	sess := start(t, svc, DifficultyBeginner)

	const n = 5
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.End(context.Background(), sess.ID, "s1")
			if !assert.NoError(t, err) {
				return
			}
			if !res.AlreadyEvaluated {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, mock.CallCount())
}

func TestAbandon(t *testing.T) {
	svc, st := newTestService(t, llm.NewMockProvider())
	ctx := context.Background()
	sess := start(t, svc, DifficultyAdvanced)

	require.NoError(t, svc.Abandon(ctx, sess.ID))

	got, err := st.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusAbandoned, got.Status)

	_, err = svc.SendMessage(ctx, sess.ID, "s1", "hello?")
	assert.ErrorIs(t, err, ErrNotActive)
	_, err = svc.End(ctx, sess.ID, "s1")
	assert.ErrorIs(t, err, ErrNotActive)
	assert.ErrorIs(t, svc.Abandon(ctx, sess.ID), ErrNotActive)
	assert.ErrorIs(t, svc.Abandon(ctx, "missing"), store.ErrNotFound)
}
