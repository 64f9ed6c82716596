package handlers

import (
	"context"
	"net/http"
	"time"

	"adaptivetest/internal/domain"
	"adaptivetest/internal/warmstore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type QuestionHandler struct {
	pools *warmstore.PoolRepository
}

func NewQuestionHandler(pools *warmstore.PoolRepository) *QuestionHandler {
	return &QuestionHandler{pools: pools}
}

type uploadRequest struct {
	Questions    []domain.Question `json:"questions" binding:"required"`
	ConceptNames []string          `json:"concept_names"`
}

// UploadQuestions creates a new bulk-uploaded pool, namespaced
// "upload_{uuid}" so it never collides with a remote-hierarchy pool id, and
// persists it directly to the warm store (bypassing the read waterfall,
// since there is no Tier 3 to source it from).
func (h *QuestionHandler) UploadQuestions(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if len(req.Questions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "questions must not be empty"})
		return
	}

	numConcepts := len(req.ConceptNames)
	for _, q := range req.Questions {
		if len(q.Concepts) > numConcepts {
			numConcepts = len(q.Concepts)
		}
	}
	if numConcepts == 0 {
		numConcepts = 1
	}
	attributes := make([]domain.ConceptAttribute, numConcepts)
	for i := range attributes {
		if i < len(req.ConceptNames) {
			attributes[i] = domain.ConceptAttribute{Name: req.ConceptNames[i]}
		} else {
			attributes[i] = domain.ConceptAttribute{Name: uuid.New().String()[:8]}
		}
	}

	poolID := "upload_" + uuid.New().String()
	questions := make([]domain.Question, len(req.Questions))
	for i, q := range req.Questions {
		q.PoolID = poolID
		q.EnsureDefaults(numConcepts)
		if q.ID == "" {
			q.ID = uuid.New().String()
		}
		questions[i] = q
	}

	pool := domain.Pool{
		ID:         poolID,
		Level:      "upload",
		LevelID:    poolID[len("upload_"):],
		Attributes: attributes,
		Questions:  questions,
		TotalCount: len(questions),
		FetchedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(365 * 24 * time.Hour),
		Origin:     "upload",
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	if err := h.pools.InsertUploadedQuestions(ctx, pool); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist uploaded pool", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"question_pool_id": poolID})
}
