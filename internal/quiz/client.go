// Package quiz reads quiz results from the SmartLearn Hub backend.
package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartlearnhub/slh/internal/autherr"
)

// Student is the submitter as embedded in a result.
type Student struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Result is one submission for a quiz.
type Result struct {
	ID        string
	Student   *Student
	Score     float64
	CreatedAt time.Time
}

// UnmarshalJSON tolerates rows the backend did not populate: a student
// given as a bare id decodes as no student, and an unparsable createdAt
// as the zero time.
func (r *Result) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        string          `json:"_id"`
		Student   json.RawMessage `json:"student"`
		Score     float64         `json:"score"`
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Result{ID: raw.ID, Score: raw.Score}

	if s := bytes.TrimSpace(raw.Student); len(s) > 0 && s[0] == '{' {
		var st Student
		if err := json.Unmarshal(s, &st); err == nil {
			r.Student = &st
		}
	}

	var created string
	if err := json.Unmarshal(raw.CreatedAt, &created); err == nil {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			r.CreatedAt = t
		}
	}
	return nil
}

// StudentName returns the best available label for the submitter.
func (r Result) StudentName() string {
	if r.Student != nil {
		if n := strings.TrimSpace(r.Student.FullName); n != "" {
			return n
		}
		if e := strings.TrimSpace(r.Student.Email); e != "" {
			return e
		}
	}
	return "Student"
}

// Client calls the quiz endpoints with the caller's app token.
type Client struct {
	base   string
	token  string
	client *http.Client
}

func NewClient(baseURL, appToken string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), token: appToken, client: hc}
}

// GetResults lists the submissions for quizID. A body that is not a JSON
// array is treated as no results.
func (c *Client) GetResults(ctx context.Context, quizID string) ([]Result, error) {
	quizID = strings.TrimSpace(quizID)
	if quizID == "" {
		return nil, autherr.Invalid("quizId", "quiz id is required")
	}
	u := c.base + "/quiz/" + url.PathEscape(quizID) + "/results"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quiz results: %w: %w", autherr.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("quiz results: %w: %w", autherr.ErrNetwork, err)
	}
	slog.Debug("quiz results response", "quiz", quizID, "status", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("quiz results: %w: status %d", autherr.ErrBackendRejected, resp.StatusCode)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []Result{}, nil
	}
	var out []Result
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("quiz results: %w: %w", autherr.ErrMalformedResponse, err)
	}
	return out, nil
}
