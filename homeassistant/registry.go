package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Registries are large on real installs; the default websocket read
// limit is far too small for an entity registry list.
const maxRegistryPayload = 8 << 20

// Area is one entry of the area registry.
type Area struct {
	ID      string `json:"area_id"`
	Name    string `json:"name"`
	FloorID string `json:"floor_id"`
}

// EntityEntry is one entry of the entity registry.
type EntityEntry struct {
	EntityID     string `json:"entity_id"`
	AreaID       string `json:"area_id"`
	DeviceID     string `json:"device_id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
}

// DisplayName returns the user-assigned name, the integration-provided
// name, or the entity id, in that order.
func (e EntityEntry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	if e.OriginalName != "" {
		return e.OriginalName
	}
	return e.EntityID
}

// RegistrySnapshot holds the area and entity registries as of one fetch.
type RegistrySnapshot struct {
	Areas    []Area
	Entities []EntityEntry
}

// AreaByName finds an area by exact name first, then by substring, both
// case-insensitive.
func (s *RegistrySnapshot) AreaByName(name string) (Area, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, a := range s.Areas {
		if strings.ToLower(a.Name) == needle {
			return a, true
		}
	}
	for _, a := range s.Areas {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			return a, true
		}
	}
	return Area{}, false
}

// EntitiesInArea returns the ids of entities assigned to the area,
// directly or through their device.
func (s *RegistrySnapshot) EntitiesInArea(areaID string) map[string]bool {
	// Device assignments reach entities that carry no area themselves.
	deviceAreas := make(map[string]string)
	for _, e := range s.Entities {
		if e.DeviceID != "" && e.AreaID != "" {
			deviceAreas[e.DeviceID] = e.AreaID
		}
	}

	ids := make(map[string]bool)
	for _, e := range s.Entities {
		area := e.AreaID
		if area == "" && e.DeviceID != "" {
			area = deviceAreas[e.DeviceID]
		}
		if area == areaID {
			ids[e.EntityID] = true
		}
	}
	return ids
}

// wsMessage is the envelope of the Home Assistant WebSocket API. One
// struct covers the handshake and command traffic this client sends.
type wsMessage struct {
	ID          int64           `json:"id,omitempty"`
	Type        string          `json:"type"`
	Success     bool            `json:"success,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *wsError        `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
	AccessToken string          `json:"access_token,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegistryClient fetches the area and entity registries over the
// WebSocket API; Home Assistant does not expose them over REST.
type RegistryClient struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewRegistryClient creates a registry client for the same base URL and
// token the REST client uses.
func NewRegistryClient(baseURL, token string, timeout time.Duration) *RegistryClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RegistryClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		timeout: timeout,
	}
}

// Registries connects, authenticates, and fetches both registries in
// one short-lived session.
func (r *RegistryClient) Registries(ctx context.Context) (*RegistrySnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	wsURL, err := websocketURL(r.baseURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxRegistryPayload)

	if err := r.authenticate(ctx, conn); err != nil {
		return nil, err
	}

	snap := &RegistrySnapshot{}
	if err := fetchList(ctx, conn, 1, "config/area_registry/list", &snap.Areas); err != nil {
		return nil, err
	}
	if err := fetchList(ctx, conn, 2, "config/entity_registry/list", &snap.Entities); err != nil {
		return nil, err
	}

	conn.Close(websocket.StatusNormalClosure, "")
	return snap, nil
}

func (r *RegistryClient) authenticate(ctx context.Context, conn *websocket.Conn) error {
	var hello wsMessage
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		return fmt.Errorf("failed to read server hello: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("unexpected handshake message %q", hello.Type)
	}

	if err := wsjson.Write(ctx, conn, wsMessage{Type: "auth", AccessToken: r.token}); err != nil {
		return fmt.Errorf("failed to send auth: %w", err)
	}

	var reply wsMessage
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		return fmt.Errorf("failed to read auth reply: %w", err)
	}
	if reply.Type != "auth_ok" {
		return fmt.Errorf("authentication rejected: %s", reply.Message)
	}
	return nil
}

// fetchList sends one list command and reads frames until its tagged
// result arrives; unrelated event traffic on the socket is skipped.
func fetchList(ctx context.Context, conn *websocket.Conn, id int64, listType string, out any) error {
	if err := wsjson.Write(ctx, conn, wsMessage{ID: id, Type: listType}); err != nil {
		return fmt.Errorf("failed to send %s: %w", listType, err)
	}

	for {
		var reply wsMessage
		if err := wsjson.Read(ctx, conn, &reply); err != nil {
			return fmt.Errorf("failed to read %s reply: %w", listType, err)
		}
		if reply.Type != "result" || reply.ID != id {
			continue
		}
		if !reply.Success {
			if reply.Error != nil {
				return fmt.Errorf("%s failed: %s %s", listType, reply.Error.Code, reply.Error.Message)
			}
			return fmt.Errorf("%s failed", listType)
		}
		if err := json.Unmarshal(reply.Result, out); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", listType, err)
		}
		return nil
	}
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/websocket"
	return u.String(), nil
}
