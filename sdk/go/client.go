package stratlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Stratline HTTP API client.
type Client struct {
	BaseURL     string
	WorkspaceID string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, workspaceID string) *Client {
	return &Client{
		BaseURL:     baseURL,
		WorkspaceID: workspaceID,
		Timeout:     10 * time.Second,
	}
}

// Narrative represents the API narrative model (partial).
type Narrative struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspace_id"`
	TeamID      *string `json:"team_id,omitempty"`
	CycleID     *string `json:"cycle_id,omitempty"`
	PillarID    *string `json:"pillar_id,omitempty"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
}

// Commitment represents the API commitment model (partial).
type Commitment struct {
	ID          string  `json:"id"`
	NarrativeID string  `json:"narrative_id"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	DueDate     *string `json:"due_date,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID           string  `json:"id"`
	CommitmentID string  `json:"commitment_id"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	DueDate      *string `json:"due_date,omitempty"`
}

// Gap is one alignment finding.
type Gap struct {
	Severity string `json:"severity"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id"`
}

// AlignmentReport is the structural-completeness report.
type AlignmentReport struct {
	Score int   `json:"score"`
	Gaps  []Gap `json:"gaps"`
}

// HealthReport is the execution-health report (partial, stats omitted).
type HealthReport struct {
	Score  int      `json:"score"`
	Status string   `json:"status"`
	Issues []string `json:"issues"`
}

// CycleDefaults is a suggested next cycle.
type CycleDefaults struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Event represents a log entry.
type Event struct {
	ID          int64          `json:"id"`
	TS          string         `json:"ts"`
	Type        string         `json:"type"`
	WorkspaceID string         `json:"workspace_id"`
	EntityKind  string         `json:"entity_kind"`
	EntityID    string         `json:"entity_id"`
	ActorID     string         `json:"actor_id"`
	Payload     map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Alignment returns the workspace alignment report.
func (c *Client) Alignment(ctx context.Context) (AlignmentReport, error) {
	var resp AlignmentReport
	err := c.do(ctx, http.MethodGet, c.workspacePath("alignment"), nil, &resp)
	return resp, err
}

// Health returns the workspace health report.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var resp HealthReport
	err := c.do(ctx, http.MethodGet, c.workspacePath("health"), nil, &resp)
	return resp, err
}

// Tree returns the raw nested hierarchy.
func (c *Client) Tree(ctx context.Context) (json.RawMessage, error) {
	var resp json.RawMessage
	err := c.do(ctx, http.MethodGet, c.workspacePath("tree"), nil, &resp)
	return resp, err
}

// CycleDefaults returns the suggested next cycle.
func (c *Client) CycleDefaults(ctx context.Context) (CycleDefaults, error) {
	var resp CycleDefaults
	err := c.do(ctx, http.MethodGet, c.workspacePath("cycles/defaults"), nil, &resp)
	return resp, err
}

// CreateNarrative creates a narrative. Optional links may be empty.
func (c *Client) CreateNarrative(ctx context.Context, title, teamID, cycleID, pillarID string) (Narrative, error) {
	body := map[string]any{"title": title}
	if teamID != "" {
		body["team_id"] = teamID
	}
	if cycleID != "" {
		body["cycle_id"] = cycleID
	}
	if pillarID != "" {
		body["pillar_id"] = pillarID
	}
	var resp Narrative
	err := c.do(ctx, http.MethodPost, c.workspacePath("narratives"), body, &resp)
	return resp, err
}

// CreateCommitment creates a commitment under a narrative.
func (c *Client) CreateCommitment(ctx context.Context, narrativeID, title, dueDate string) (Commitment, error) {
	body := map[string]any{"title": title}
	if dueDate != "" {
		body["due_date"] = dueDate
	}
	var resp Commitment
	endpoint := fmt.Sprintf("v0/narratives/%s/commitments", url.PathEscape(narrativeID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CreateTask creates a task under a commitment.
func (c *Client) CreateTask(ctx context.Context, commitmentID, title, dueDate string) (Task, error) {
	body := map[string]any{"title": title}
	if dueDate != "" {
		body["due_date"] = dueDate
	}
	var resp Task
	endpoint := fmt.Sprintf("v0/commitments/%s/tasks", url.PathEscape(commitmentID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := c.workspacePath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) workspacePath(p string) string {
	workspace := url.PathEscape(c.WorkspaceID)
	return fmt.Sprintf("v0/workspaces/%s/%s", workspace, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
