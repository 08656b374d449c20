// Package action defines the typed action records carried by scheduled jobs
// and the executor contract that runs them.
//
// On the wire every action is a JSON object with an "action" discriminator
// naming the kind; the remaining keys are the variant's own fields. Kinds
// this build does not know are preserved verbatim and reported as unknown
// at execution time instead of failing the whole job.
package action

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Wire discriminator values.
const (
	KindCallService      = "call_service"
	KindGetState         = "get_state"
	KindGetStates        = "get_states"
	KindGetArea          = "get_area"
	KindGetAreas         = "get_areas"
	KindGetHouseSummary  = "get_house_summary"
	KindCreateAutomation = "create_automation"
	KindScheduleJob      = "schedule_job"
	KindRemoveJob        = "remove_job"
	KindListEntities     = "list_entities"
)

// Action is one step of a job.
type Action interface {
	Kind() string
}

// List is an ordered sequence of actions. Order is execution order.
type List []Action

// CallService invokes a Home Assistant service on an entity.
type CallService struct {
	Domain   string         `json:"domain"`
	Service  string         `json:"service"`
	EntityID string         `json:"entity_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

func (CallService) Kind() string { return KindCallService }

// GetState reads the state of a single entity.
type GetState struct {
	EntityID string `json:"entity_id"`
}

func (GetState) Kind() string { return KindGetState }

// GetStates reads states for a domain, an area, or an explicit entity list.
type GetStates struct {
	Domain    string   `json:"domain,omitempty"`
	Area      string   `json:"area,omitempty"`
	EntityIDs []string `json:"entity_ids,omitempty"`
}

func (GetStates) Kind() string { return KindGetStates }

// GetArea reports the entities of one area.
type GetArea struct {
	Area string `json:"area"`
}

func (GetArea) Kind() string { return KindGetArea }

// GetAreas lists all known areas.
type GetAreas struct{}

func (GetAreas) Kind() string { return KindGetAreas }

// GetHouseSummary reports a compact whole-house state overview.
type GetHouseSummary struct{}

func (GetHouseSummary) Kind() string { return KindGetHouseSummary }

// CreateAutomation registers a new Home Assistant automation.
// Steps holds the automation's own action sequence; it is named "steps"
// on the wire because "action" is taken by the discriminator.
type CreateAutomation struct {
	Alias       string           `json:"alias"`
	Description string           `json:"description,omitempty"`
	Mode        string           `json:"mode,omitempty"`
	Triggers    []map[string]any `json:"trigger,omitempty"`
	Conditions  []map[string]any `json:"condition,omitempty"`
	Steps       []map[string]any `json:"steps,omitempty"`
}

func (CreateAutomation) Kind() string { return KindCreateAutomation }

// ScheduleJob asks the scheduler to create another job.
type ScheduleJob struct {
	Cron        string `json:"cron"`
	Description string `json:"description,omitempty"`
	Actions     List   `json:"actions,omitempty"`
	OneShot     bool   `json:"one_shot,omitempty"`
}

func (ScheduleJob) Kind() string { return KindScheduleJob }

// RemoveJob asks the scheduler to delete a job.
type RemoveJob struct {
	JobID string `json:"job_id"`
}

func (RemoveJob) Kind() string { return KindRemoveJob }

// ListEntities lists entity IDs, optionally filtered by domain or substring.
type ListEntities struct {
	Domain string `json:"domain,omitempty"`
	Search string `json:"search,omitempty"`
}

func (ListEntities) Kind() string { return KindListEntities }

// Unknown is an action whose kind this build does not recognize.
// The raw record is kept so it survives store round-trips unchanged.
type Unknown struct {
	RawKind string
	Raw     json.RawMessage
}

func (u Unknown) Kind() string { return u.RawKind }

// MarshalJSON encodes the list with the discriminator injected into each
// record.
func (l List) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, a := range l {
		raw, err := Marshal(a)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a list of discriminated records.
func (l *List) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	list := make(List, 0, len(raws))
	for _, raw := range raws {
		a, err := Unmarshal(raw)
		if err != nil {
			return err
		}
		list = append(list, a)
	}
	*l = list
	return nil
}

// Marshal encodes a single action as a discriminated JSON object.
func Marshal(a Action) (json.RawMessage, error) {
	if u, ok := a.(Unknown); ok {
		return u.Raw, nil
	}

	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "action", a.Kind())
}

// Unmarshal decodes a single discriminated JSON object into its variant.
// Unrecognized kinds decode to Unknown rather than failing.
func Unmarshal(raw json.RawMessage) (Action, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("action: invalid JSON record")
	}
	kind := gjson.GetBytes(raw, "action").String()

	switch kind {
	case KindCallService:
		return decode[CallService](raw, kind)
	case KindGetState:
		return decode[GetState](raw, kind)
	case KindGetStates:
		return decode[GetStates](raw, kind)
	case KindGetArea:
		return decode[GetArea](raw, kind)
	case KindGetAreas:
		return GetAreas{}, nil
	case KindGetHouseSummary:
		return GetHouseSummary{}, nil
	case KindCreateAutomation:
		return decode[CreateAutomation](raw, kind)
	case KindScheduleJob:
		return decode[ScheduleJob](raw, kind)
	case KindRemoveJob:
		return decode[RemoveJob](raw, kind)
	case KindListEntities:
		return decode[ListEntities](raw, kind)
	default:
		return Unknown{RawKind: kind, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

func decode[T Action](raw json.RawMessage, kind string) (Action, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("action: decode %q: %w", kind, err)
	}
	return v, nil
}
