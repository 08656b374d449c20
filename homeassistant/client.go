// Package homeassistant talks to a Home Assistant instance over its REST
// and WebSocket APIs and implements the action executor against them.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mordomohq/mordomo/logger"
)

const defaultTimeout = 15 * time.Second

// ErrEntityNotFound reports a state lookup for an entity Home Assistant
// does not know.
var ErrEntityNotFound = errors.New("entity not found")

// EntityState is one entry of the Home Assistant state machine.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// FriendlyName returns the friendly_name attribute, falling back to the
// entity id.
func (s EntityState) FriendlyName() string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}

// Unit returns the unit_of_measurement attribute, if any.
func (s EntityState) Unit() string {
	unit, _ := s.Attributes["unit_of_measurement"].(string)
	return unit
}

// Domain returns the entity id's domain prefix.
func (s EntityState) Domain() string {
	if i := strings.IndexByte(s.EntityID, '.'); i > 0 {
		return s.EntityID[:i]
	}
	return s.EntityID
}

// Client is a minimal Home Assistant REST client covering the calls the
// action executor needs.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL (for example
// "http://homeassistant.local:8123") and long-lived access token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// States returns the full state machine.
func (c *Client) States(ctx context.Context) ([]EntityState, error) {
	var states []EntityState
	if err := c.do(ctx, http.MethodGet, "/api/states", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// State returns the state of a single entity. The returned error wraps
// ErrEntityNotFound when Home Assistant does not know the id.
func (c *Client) State(ctx context.Context, entityID string) (*EntityState, error) {
	var state EntityState
	err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil, &state)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
		}
		return nil, err
	}
	return &state, nil
}

// CallService invokes domain.service with the given payload. Targets
// ride in the payload as entity_id, area_id and friends.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	path := fmt.Sprintf("/api/services/%s/%s", url.PathEscape(domain), url.PathEscape(service))
	return c.do(ctx, http.MethodPost, path, data, nil)
}

// CreateAutomation registers an automation under the given id. Home
// Assistant reloads its automation config as part of the call.
func (c *Client) CreateAutomation(ctx context.Context, automationID string, config map[string]any) error {
	return c.do(ctx, http.MethodPost, "/api/config/automation/config/"+url.PathEscape(automationID), config, nil)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request failed: %d %s", e.code, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("home assistant request error", "method", method, "path", path, "err", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		errBody := strings.TrimSpace(buf.String())
		logger.Error("home assistant request error", "method", method, "path", path, "status", resp.StatusCode, "body", errBody)
		return &statusError{code: resp.StatusCode, body: errBody}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
