package backend

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

	"github.com/rs/zerolog"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
)

// APIError is a non-2xx backend response, carrying the server-provided
// message when one was present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// CallGrant is the result of a successful call initiation.
type CallGrant struct {
	CustomerCallSID string `json:"customer_call_sid"`
	Conference      string `json:"conference"`
}

type Recording struct {
	RecordingSID string `json:"recording_sid"`
	URL          string `json:"url"`
	Transcript   string `json:"transcript"`
}

type Transcript struct {
	CallSID    string      `json:"call_sid"`
	Recordings []Recording `json:"recordings"`
}

// Client talks to the dialer backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ListQueue fetches the pending leads in backend-delivered order. An empty
// list is a valid empty-queue state.
func (c *Client) ListQueue(ctx context.Context) ([]domain.QueueEntry, error) {
	var entries []domain.QueueEntry
	if err := c.getJSON(ctx, "/api/calls", &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Status == "" {
			entries[i].Status = domain.LeadStatusPending
		}
	}
	return entries, nil
}

// RemoveLead asks the backend to drop a lead from the queue.
func (c *Client) RemoveLead(ctx context.Context, phoneNumber string) error {
	return c.postJSON(ctx, "/api/remove_lead", map[string]string{
		"phone_number": phoneNumber,
	}, nil)
}

// MakeCall requests an outbound call and returns the conference grant.
func (c *Client) MakeCall(ctx context.Context, agentID, to string) (CallGrant, error) {
	var grant CallGrant
	err := c.postJSON(ctx, "/make_call", map[string]string{
		"agent_id": agentID,
		"to":       to,
	}, &grant)
	if err != nil {
		return CallGrant{}, err
	}

	c.logger.Info().
		Str("call_sid", grant.CustomerCallSID).
		Str("conference", grant.Conference).
		Msg("Backend initiated call")

	return grant, nil
}

// SendVoicemail drops a pre-recorded voicemail on the target number.
func (c *Client) SendVoicemail(ctx context.Context, to, voicemail string) error {
	return c.postJSON(ctx, "/api/send_voicemail", map[string]string{
		"to":        to,
		"voicemail": voicemail,
	}, nil)
}

// GetTranscript fetches the recordings and transcripts for a call.
func (c *Client) GetTranscript(ctx context.Context, callSID string) (Transcript, error) {
	var transcript Transcript
	path := "/get_transcript/" + url.PathEscape(callSID)
	if err := c.getJSON(ctx, path, &transcript); err != nil {
		return Transcript{}, err
	}
	return transcript, nil
}

// RateTranscript submits a transcript to the rating-inference endpoint and
// returns the numeric rating.
func (c *Client) RateTranscript(ctx context.Context, transcript string) (int, error) {
	var result struct {
		Rating *int `json:"rating"`
	}
	err := c.postJSON(ctx, "/api/gemini_rating", map[string]string{
		"transcript": transcript,
	}, &result)
	if err != nil {
		return 0, err
	}
	if result.Rating == nil {
		return 0, fmt.Errorf("rating service returned no rating")
	}
	return *result.Rating, nil
}

// AddNote stores a note for a lead, keyed by the lead's backend user id and
// the agent handling it.
func (c *Client) AddNote(ctx context.Context, userID int64, agentID, note string) error {
	return c.postJSON(ctx, "/api/add_note", map[string]interface{}{
		"user_id":  userID,
		"agent_id": agentID,
		"note":     note,
	}, nil)
}

// ListAgents fetches the selectable agents.
func (c *Client) ListAgents(ctx context.Context) ([]domain.AgentInfo, error) {
	var agents []domain.AgentInfo
	if err := c.getJSON(ctx, "/api/agents", &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// Token mints a device credential for the given agent identity.
func (c *Client) Token(ctx context.Context, agentID string) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	path := "/token"
	if agentID != "" {
		path += "?agent_id=" + url.QueryEscape(agentID)
	}
	if err := c.getJSON(ctx, path, &result); err != nil {
		return "", err
	}
	return result.Token, nil
}

func (c *Client) getJSON(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, target)
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, target interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target interface{}) error {
	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var serverError struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &serverError); err == nil {
			apiErr.Message = serverError.Error
		}
		return apiErr
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
