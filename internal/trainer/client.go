// Package trainer is the HTTP client for the embedding/training backend. A
// training call is a single long-lived POST whose response body is a
// line-oriented event stream; the client relays decoded events to a callback
// until the backend reports completion or failure.
package trainer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sentinel errors for trainer client failures.
var (
	ErrTrainerUnreachable = errors.New("trainer unreachable")
	ErrTrainerStatus      = errors.New("trainer request rejected")
	ErrTrainingFailed     = errors.New("training failed")
)

const maxLineSize = 1 << 20

// FileRef describes one file for the backend to process.
type FileRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// DBParams are the target-store connection parameters the backend writes
// embeddings with.
type DBParams struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"dbname"`
}

// StreamRequest is the body of one training call.
type StreamRequest struct {
	KnowledgeBaseID string    `json:"knowledge_base_id"`
	VersionID       string    `json:"version_id"`
	Files           []FileRef `json:"files"`
	DBConfig        DBParams  `json:"db_config"`
	JobID           string    `json:"job_id"`
	JobIndex        int       `json:"job_index"`
	TotalJobs       int       `json:"total_jobs"`
}

// EventFunc receives each non-terminal event in stream order.
type EventFunc func(ev StreamEvent)

// Client is the interface for running a training job against the backend.
type Client interface {
	Stream(ctx context.Context, req StreamRequest, emit EventFunc) error
}

// HTTPClient implements Client against the backend's streaming HTTP API.
type HTTPClient struct {
	baseURL string
	db      DBParams
	client  *http.Client
}

// NewHTTPClient creates a trainer client. No request timeout is set: a
// training call runs for the whole job and is bounded only by the caller's
// context.
func NewHTTPClient(baseURL string, db DBParams) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		db:      db,
		client:  &http.Client{},
	}
}

// Stream issues the training call and relays its event stream. It returns
// nil when the backend reports completion, ErrTrainingFailed when the backend
// reports an error event, and a transport error otherwise.
func (c *HTTPClient) Stream(ctx context.Context, req StreamRequest, emit EventFunc) error {
	req.DBConfig = c.db

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal training request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/training/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxLineSize))
		return fmt.Errorf("%w: status %d: %s", ErrTrainerStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			// The stream evolves independently of this client; skip lines
			// it cannot decode instead of failing the job.
			continue
		}

		switch ev.EventType() {
		case EventComplete:
			return nil
		case EventError:
			return fmt.Errorf("%w: %s", ErrTrainingFailed, ev.Message)
		default:
			emit(ev)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading training stream: %w", err)
	}
	return nil
}

// classifyError maps transport failures onto ErrTrainerUnreachable while
// keeping context cancellation visible to callers.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTrainerUnreachable, err)
}

var _ Client = (*HTTPClient)(nil)
