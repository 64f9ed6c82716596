// Package remote is the Tier 3 adapter: the authoritative hierarchy service
// reachable over plain HTTP, fetched with bearer-token auth and paginated.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"adaptivetest/internal/domain"
)

type wireOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type wireQuestion struct {
	ID             string       `json:"id"`
	Content        string       `json:"content"`
	Options        []wireOption `json:"options"`
	CorrectAnswer  string       `json:"correct_answer"`
	Difficulty     *float64     `json:"difficulty"`
	Discrimination *float64     `json:"discrimination"`
	Guessing       *float64     `json:"guessing"`
	Concepts       []float64    `json:"q_vector"`
	TopicID        string       `json:"topic_id"`
	ChapterID      string       `json:"chapter_id"`
	SubjectID      string       `json:"subject_id"`
	ClassID        string       `json:"class_id"`
	ExamID         string       `json:"exam_id"`
}

type wirePagination struct {
	Page       int  `json:"page"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

type wireResponse struct {
	Level          string                    `json:"level"`
	LevelID        string                    `json:"level_id"`
	AttributeCount int                       `json:"attribute_count"`
	Attributes     []domain.ConceptAttribute `json:"attributes"`
	Questions      []wireQuestion            `json:"questions"`
	Pagination     wirePagination            `json:"pagination"`
}

// Client fetches question pools from the hierarchy service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) fetchPage(ctx context.Context, level, levelID string, page, pageSize int) (*wireResponse, error) {
	endpoint := fmt.Sprintf("%s/api/hierarchy/%s/%s/questions/enhanced", c.baseURL, level, levelID)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("build remote url: %w", err)
	}
	q := u.Query()
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("page_size", fmt.Sprintf("%d", pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build remote request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote returned status %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode remote response: %w", err)
	}
	return &wire, nil
}

// FetchPool fetches every page of a hierarchy node's question bank,
// tolerating a mid-pagination failure by returning what has been gathered
// so far rather than aborting the whole fetch.
func (c *Client) FetchPool(ctx context.Context, level, levelID string, fetchAllPages bool, pageSize int) (*domain.Pool, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	first, err := c.fetchPage(ctx, level, levelID, 1, pageSize)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}

	questions := first.Questions
	if fetchAllPages && first.Pagination.HasMore {
		totalPages := first.Pagination.TotalPages
		if totalPages < 1 {
			totalPages = 1
		}
		for page := 2; page <= totalPages; page++ {
			pageData, err := c.fetchPage(ctx, level, levelID, page, pageSize)
			if err != nil || pageData == nil {
				log.Printf("[remote] failed to fetch page %d/%d for %s/%s, returning partial data: %v", page, totalPages, level, levelID, err)
				break
			}
			questions = append(questions, pageData.Questions...)
		}
	}

	return transform(level, levelID, first.Attributes, questions), nil
}

func transform(level, levelID string, attributes []domain.ConceptAttribute, wire []wireQuestion) *domain.Pool {
	numConcepts := len(attributes)
	if numConcepts == 0 {
		numConcepts = 1
	}

	questions := make([]domain.Question, 0, len(wire))
	for _, q := range wire {
		opts := make([]domain.Option, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, domain.Option{ID: o.ID, Text: o.Text})
		}
		question := domain.Question{
			ID:            q.ID,
			PoolID:        domain.PoolID(level, levelID),
			Content:       q.Content,
			Options:       opts,
			CorrectAnswer: q.CorrectAnswer,
			Concepts:      q.Concepts,
			TopicID:       q.TopicID,
			ChapterID:     q.ChapterID,
			SubjectID:     q.SubjectID,
			ClassID:       q.ClassID,
			ExamID:        q.ExamID,
		}
		if q.Difficulty != nil {
			question.Difficulty = *q.Difficulty
		} else {
			question.Difficulty = 0.5
		}
		if q.Discrimination != nil {
			question.Discrimination = *q.Discrimination
		}
		if q.Guessing != nil {
			question.Guessing = *q.Guessing
		}
		question.EnsureDefaults(numConcepts)
		questions = append(questions, question)
	}

	return &domain.Pool{
		ID:         domain.PoolID(level, levelID),
		Level:      level,
		LevelID:    levelID,
		Attributes: attributes,
		Questions:  questions,
		TotalCount: len(questions),
		Origin:     "remote",
	}
}
