package handlers

import (
	"context"
	"net/http"
	"time"

	"adaptivetest/internal/domain"
	"adaptivetest/internal/session"

	"github.com/gin-gonic/gin"
)

type TestHandler struct {
	coordinator *session.Coordinator
}

func NewTestHandler(coordinator *session.Coordinator) *TestHandler {
	return &TestHandler{coordinator: coordinator}
}

func writeDomainError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.ErrValidation:
		status = http.StatusBadRequest
	case domain.ErrPoolUnavailable, domain.ErrSessionNotFound, domain.ErrQuestionNotFound:
		status = http.StatusNotFound
	case domain.ErrSessionInactive:
		status = http.StatusBadRequest
	case domain.ErrDuplicateSubmit:
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type startRequest struct {
	StudentID      string              `json:"student_id" binding:"required"`
	QuestionPoolID string              `json:"question_pool_id" binding:"required"`
	ConceptNames   []string            `json:"concept_names"`
	EndCriteria    *domain.EndCriteria `json:"end_criteria"`
}

// StartTest begins a new adaptive session against an already-cacheable
// question pool.
func (h *TestHandler) StartTest(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := h.coordinator.Start(ctx, req.StudentID, req.QuestionPoolID, req.EndCriteria, req.ConceptNames)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":          result.SessionID,
		"initial_proficiency": result.InitialProficiency,
		"concept_names":       result.ConceptNames,
		"next_question":       result.NextQuestion,
		"status":              "started",
	})
}

type submitRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	QuestionID string `json:"question_id" binding:"required"`
	Response   int    `json:"response"`
}

// SubmitAnswer records one response and returns either the next question or
// the session's final summary.
func (h *TestHandler) SubmitAnswer(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := h.coordinator.Submit(ctx, req.SessionID, req.QuestionID, req.Response != 0)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	if !result.Completed {
		c.JSON(http.StatusOK, gin.H{
			"status":              "continue",
			"current_proficiency": result.CurrentProficiency,
			"next_question":        result.NextQuestion,
			"questions_answered":   result.Summary.TotalQuestions,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "completed",
		"final_proficiency":  result.Summary.FinalProficiency,
		"total_questions":    result.Summary.TotalQuestions,
		"accuracy":           result.Summary.Accuracy,
		"learning_gain":      result.Summary.LearningGain,
		"efficiency":         result.Summary.Efficiency,
		"proficiency_change": result.Summary.ProficiencyChange,
	})
}

func (h *TestHandler) GetStatus(c *gin.Context) {
	sessionID := c.Param("session_id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sess, err := h.coordinator.Status(ctx, sessionID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *TestHandler) EndTest(c *gin.Context) {
	sessionID := c.Param("session_id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sess, err := h.coordinator.End(ctx, sessionID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}
