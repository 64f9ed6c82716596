package handlers

import (
	"context"
	"net/http"
	"time"

	"adaptivetest/internal/warmstore"

	"github.com/gin-gonic/gin"
)

type StudentHandler struct {
	students  *warmstore.StudentRepository
	responses *warmstore.ResponseRepository
}

func NewStudentHandler(students *warmstore.StudentRepository, responses *warmstore.ResponseRepository) *StudentHandler {
	return &StudentHandler{students: students, responses: responses}
}

func (h *StudentHandler) GetProficiency(c *gin.Context) {
	studentID := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	proficiencies, err := h.students.Proficiencies(ctx, studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load proficiency", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": studentID, "proficiencies": proficiencies})
}

func (h *StudentHandler) GetHistory(c *gin.Context) {
	studentID := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	history, err := h.responses.FindByStudent(ctx, studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load response history", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": studentID, "responses": history})
}

// GetProgress summarizes accuracy across every recorded response, a
// cross-session view distinct from a single test session's summary.
func (h *StudentHandler) GetProgress(c *gin.Context) {
	studentID := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	history, err := h.responses.FindByStudent(ctx, studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load response history", "details": err.Error()})
		return
	}

	correct := 0
	for _, r := range history {
		if r.Correct {
			correct++
		}
	}
	accuracy := 0.0
	if len(history) > 0 {
		accuracy = float64(correct) / float64(len(history))
	}

	proficiencies, err := h.students.Proficiencies(ctx, studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load proficiency", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"student_id":       studentID,
		"total_responses":  len(history),
		"overall_accuracy": accuracy,
		"proficiencies":    proficiencies,
	})
}
