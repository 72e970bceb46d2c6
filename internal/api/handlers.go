package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abhisek/speakquest/internal/conversation"
	"github.com/abhisek/speakquest/internal/gateway"
	"github.com/abhisek/speakquest/internal/progression"
	"github.com/abhisek/speakquest/internal/store"
)

type startRequest struct {
	ActivityID      string `json:"activityId" binding:"required"`
	Scenario        string `json:"scenario"`
	DifficultyLevel string `json:"difficultyLevel"`
}

type startResponse struct {
	SessionID    string `json:"sessionId"`
	FirstMessage string `json:"firstMessage"`
}

func (h *handler) startConversation(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.Conversation.Start(c.Request.Context(), studentID(c), conversation.StartInput{
		ActivityID: req.ActivityID,
		Scenario:   req.Scenario,
		Difficulty: req.DifficultyLevel,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, startResponse{SessionID: sess.ID, FirstMessage: sess.Messages[0].Text})
}

type messageRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *handler) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Conversation.SendMessage(c.Request.Context(), req.SessionID, studentID(c), req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type endResponse struct {
	Evaluation       gateway.Evaluation `json:"evaluation"`
	PointsEarned     int                `json:"pointsEarned"`
	AlreadyEvaluated bool               `json:"alreadyEvaluated"`
	Progress         *progressView      `json:"progress,omitempty"`
}

func (h *handler) endConversation(c *gin.Context) {
	ctx := c.Request.Context()
	sid := studentID(c)

	res, err := h.Conversation.End(ctx, c.Param("id"), sid)
	if err != nil {
		fail(c, err)
		return
	}

	out := endResponse{
		Evaluation:       res.Evaluation,
		PointsEarned:     res.PointsEarned,
		AlreadyEvaluated: res.AlreadyEvaluated,
	}
	if !res.AlreadyEvaluated {
		outcome, err := h.Progression.AwardConversation(ctx, sid, res.PointsEarned)
		if err != nil {
			h.Log.Error("crediting conversation points failed",
				zap.String("session_id", c.Param("id")), zap.String("student_id", sid), zap.Error(err))
			fail(c, err)
			return
		}
		out.Progress = newProgressView(outcome)
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) getConversation(c *gin.Context) {
	sess, err := h.Conversation.Get(c.Request.Context(), c.Param("id"), studentID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *handler) analysis(c *gin.Context) {
	a, err := h.Analyzer.Analyze(c.Request.Context(), studentID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handler) generate(c *gin.Context) {
	res, err := h.Practice.GenerateForStudent(c.Request.Context(), studentID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) recommendations(c *gin.Context) {
	res, err := h.Practice.Recommend(c.Request.Context(), studentID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type completeRequest struct {
	Score         *float64        `json:"score" binding:"required"`
	TimeSpentSecs int             `json:"timeSpentSecs"`
	Submission    json.RawMessage `json:"submission"`
	Feedback      json.RawMessage `json:"feedback"`
}

type badgeView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Rare        bool       `json:"rare"`
	EarnedAt    *time.Time `json:"earnedAt,omitempty"`
}

type progressView struct {
	Student      store.Student `json:"student"`
	PointsEarned int           `json:"pointsEarned"`
	LeveledUp    bool          `json:"leveledUp"`
	NewBadges    []badgeView   `json:"newBadges"`
}

func newProgressView(o *progression.Outcome) *progressView {
	v := &progressView{
		Student:      o.Student,
		PointsEarned: o.PointsEarned,
		LeveledUp:    o.LeveledUp,
		NewBadges:    []badgeView{},
	}
	for _, b := range o.NewBadges {
		v.NewBadges = append(v.NewBadges, badgeView{ID: b.ID, Name: b.Name, Description: b.Description, Rare: b.Rare})
	}
	return v
}

func (h *handler) completeActivity(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	outcome, err := h.Progression.CompleteActivity(c.Request.Context(), studentID(c), c.Param("id"), progression.CompletionInput{
		Score:         *req.Score,
		TimeSpentSecs: req.TimeSpentSecs,
		Submission:    req.Submission,
		Feedback:      req.Feedback,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newProgressView(outcome))
}

type meResponse struct {
	Student *store.Student `json:"student"`
	Badges  []badgeView    `json:"badges"`
}

func (h *handler) me(c *gin.Context) {
	ctx := c.Request.Context()
	sid := studentID(c)

	st, err := h.Store.Students().Get(ctx, sid)
	if err != nil {
		fail(c, err)
		return
	}
	earned, err := h.Progression.Badges(ctx, sid)
	if err != nil {
		fail(c, err)
		return
	}
	out := meResponse{Student: st, Badges: []badgeView{}}
	for _, b := range earned {
		at := b.EarnedAt
		out.Badges = append(out.Badges, badgeView{
			ID: b.ID, Name: b.Name, Description: b.Description, Rare: b.Rare, EarnedAt: &at,
		})
	}
	c.JSON(http.StatusOK, out)
}
