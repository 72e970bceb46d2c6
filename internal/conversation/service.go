package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/speakquest/internal/gateway"
	"github.com/abhisek/speakquest/internal/llm"
	"github.com/abhisek/speakquest/internal/lock"
	"github.com/abhisek/speakquest/internal/store"
)

// Assistant is the model surface a session needs. *gateway.Gateway
// implements it.
type Assistant interface {
	Chat(ctx context.Context, system string, history []llm.Message, temperature float64, maxTokens int) (string, error)
	EvaluateConversation(ctx context.Context, studentMessages, aiMessages []string, difficulty string, grade int) gateway.Evaluation
}

// Service manages conversation sessions. Calls on the same session are
// serialized through the locker.
type Service struct {
	store     *store.Store
	assistant Assistant
	locker    lock.Locker
	now       func() time.Time
	log       *zap.Logger
}

// NewService creates a conversation Service. A nil locker uses an
// in-process keyed mutex.
func NewService(st *store.Store, assistant Assistant, locker lock.Locker, log *zap.Logger) *Service {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     st,
		assistant: assistant,
		locker:    locker,
		now:       time.Now,
		log:       log.Named("conversation"),
	}
}

// Start opens a session with a templated greeting. No model call is made.
func (s *Service) Start(ctx context.Context, studentID string, in StartInput) (*store.Session, error) {
	student, err := s.store.Students().Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Activities().Get(ctx, in.ActivityID); err != nil {
		return nil, err
	}

	scenario := strings.TrimSpace(in.Scenario)
	if scenario == "" {
		scenario = defaultScenario
	}
	difficulty := strings.ToLower(strings.TrimSpace(in.Difficulty))
	if difficulty == "" {
		difficulty = student.Proficiency
	}

	now := s.now()
	sess := &store.Session{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		ActivityID: in.ActivityID,
		Scenario:   scenario,
		Difficulty: difficulty,
		Status:     store.StatusActive,
		TurnCount:  1,
		Messages: []store.Message{{
			Role:      store.RoleAI,
			Text:      OpeningLine(scenario, difficulty, student.FirstName),
			Timestamp: now,
		}},
		CreatedAt: now,
	}
	if err := s.store.Sessions().Create(ctx, sess); err != nil {
		return nil, err
	}

	s.log.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("student_id", studentID),
		zap.String("scenario", scenario),
		zap.String("difficulty", difficulty))
	return sess, nil
}

// SendMessage runs one turn. The student message, the reply and the
// turn increment are stored together once the reply arrives; a failed
// chat leaves the session unchanged.
func (s *Service) SendMessage(ctx context.Context, sessionID, studentID, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	unlock, err := s.locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	sess, err := s.owned(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if sess.Status != store.StatusActive {
		return nil, ErrNotActive
	}
	student, err := s.store.Students().Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	msgs := append(sess.Messages, store.Message{Role: store.RoleStudent, Text: text, Timestamp: s.now()})
	system := systemPrompt(sess.Difficulty, student.Grade, sess.Scenario, student.FirstName)

	reply, err := s.assistant.Chat(llm.WithStudent(ctx, studentID), system, chatHistory(msgs), chatTemperature, chatMaxTokens)
	if err != nil {
		s.log.Warn("chat failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	reply = strings.TrimSpace(reply)
	msgs = append(msgs, store.Message{Role: store.RoleAI, Text: reply, Timestamp: s.now()})

	turn := sess.TurnCount + 1
	status := store.StatusActive
	shouldEnd := turn >= TurnLimit(sess.Difficulty)
	if shouldEnd {
		status = store.StatusCompleted
	}

	if err := s.store.Sessions().SaveTurn(ctx, sessionID, msgs, turn, status); err != nil {
		if errors.Is(err, store.ErrStaleSession) {
			return nil, ErrNotActive
		}
		return nil, err
	}

	return &TurnResult{AIResponse: reply, TurnCount: turn, ShouldEnd: shouldEnd}, nil
}

// End evaluates the session and attaches the evaluation exactly once.
// Repeated calls return the stored evaluation without a model call.
// The student is not credited here.
func (s *Service) End(ctx context.Context, sessionID, studentID string) (*EndResult, error) {
	unlock, err := s.locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	sess, err := s.owned(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if sess.Evaluation != nil {
		return storedResult(sess)
	}
	if sess.Status == store.StatusAbandoned {
		return nil, ErrNotActive
	}

	student, err := s.store.Students().Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var studentMsgs, aiMsgs []string
	for _, m := range sess.Messages {
		switch m.Role {
		case store.RoleStudent:
			studentMsgs = append(studentMsgs, m.Text)
		case store.RoleAI:
			aiMsgs = append(aiMsgs, m.Text)
		}
	}

	eval := s.assistant.EvaluateConversation(llm.WithStudent(ctx, studentID), studentMsgs, aiMsgs, sess.Difficulty, student.Grade)

	reward := store.DefaultPointsReward
	act, err := s.store.Activities().Get(ctx, sess.ActivityID)
	switch {
	case err == nil:
		reward = act.Reward()
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	points := int(math.Round(eval.OverallScore / 100 * float64(reward)))

	raw, err := json.Marshal(eval)
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation: %w", err)
	}
	attached, err := s.store.Sessions().AttachEvaluation(ctx, sessionID, raw, points)
	if err != nil {
		return nil, err
	}
	if !attached {
		// Another instance got there first.
		current, err := s.store.Sessions().Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if current.Evaluation == nil {
			return nil, ErrNotActive
		}
		return storedResult(current)
	}

	s.log.Info("session evaluated",
		zap.String("session_id", sessionID),
		zap.String("student_id", studentID),
		zap.Float64("overall", eval.OverallScore),
		zap.Int("points", points))
	return &EndResult{Evaluation: eval, PointsEarned: points}, nil
}

// Get returns a session owned by studentID.
func (s *Service) Get(ctx context.Context, sessionID, studentID string) (*store.Session, error) {
	return s.owned(ctx, sessionID, studentID)
}

// Abandon moves an active session to abandoned. It is an administrative
// operation and checks no ownership.
func (s *Service) Abandon(ctx context.Context, sessionID string) error {
	unlock, err := s.locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	if _, err := s.store.Sessions().Get(ctx, sessionID); err != nil {
		return err
	}
	ok, err := s.store.Sessions().Transition(ctx, sessionID, store.StatusActive, store.StatusAbandoned)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotActive
	}
	s.log.Info("session abandoned", zap.String("session_id", sessionID))
	return nil
}

func (s *Service) owned(ctx context.Context, sessionID, studentID string) (*store.Session, error) {
	sess, err := s.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.StudentID != studentID {
		return nil, ErrNotOwner
	}
	return sess, nil
}

func storedResult(sess *store.Session) (*EndResult, error) {
	var eval gateway.Evaluation
	if err := json.Unmarshal(sess.Evaluation, &eval); err != nil {
		return nil, fmt.Errorf("decode stored evaluation: %w", err)
	}
	return &EndResult{Evaluation: eval, PointsEarned: sess.PointsEarned, AlreadyEvaluated: true}, nil
}

// chatHistory converts the log to model turns, skipping the greeting.
func chatHistory(msgs []store.Message) []llm.Message {
	if len(msgs) > 0 && msgs[0].Role == store.RoleAI {
		msgs = msgs[1:]
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := llm.RoleUser
		if m.Role == store.RoleAI {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Text})
	}
	return out
}
