package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/tidwall/gjson"
)

func TestUnmarshalVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Action
	}{
		{
			name: "call_service",
			raw:  `{"action":"call_service","domain":"light","service":"turn_on","entity_id":"light.living_room","data":{"brightness":200}}`,
			want: CallService{
				Domain:   "light",
				Service:  "turn_on",
				EntityID: "light.living_room",
				Data:     map[string]any{"brightness": float64(200)},
			},
		},
		{
			name: "get_state",
			raw:  `{"action":"get_state","entity_id":"sensor.kitchen_temp"}`,
			want: GetState{EntityID: "sensor.kitchen_temp"},
		},
		{
			name: "get_states with filters",
			raw:  `{"action":"get_states","domain":"climate","area":"bedroom"}`,
			want: GetStates{Domain: "climate", Area: "bedroom"},
		},
		{
			name: "get_areas",
			raw:  `{"action":"get_areas"}`,
			want: GetAreas{},
		},
		{
			name: "remove_job",
			raw:  `{"action":"remove_job","job_id":"a1b2c3d4"}`,
			want: RemoveJob{JobID: "a1b2c3d4"},
		},
		{
			name: "list_entities",
			raw:  `{"action":"list_entities","domain":"switch","search":"garden"}`,
			want: ListEntities{Domain: "switch", Search: "garden"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(tt.want)
			if got.Kind() != tt.want.Kind() || !bytes.Equal(gotJSON, wantJSON) {
				t.Errorf("Unmarshal() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestListRoundTripKeepsOrderAndDiscriminators(t *testing.T) {
	raw := `[
		{"action":"get_state","entity_id":"sensor.front_door"},
		{"action":"call_service","domain":"lock","service":"lock","entity_id":"lock.front_door"},
		{"action":"get_house_summary"}
	]`

	var list List
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(list))
	}

	wantKinds := []string{KindGetState, KindCallService, KindGetHouseSummary}
	for i, a := range list {
		if a.Kind() != wantKinds[i] {
			t.Errorf("action[%d].Kind() = %q, want %q", i, a.Kind(), wantKinds[i])
		}
	}

	encoded, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("encode list: %v", err)
	}
	for i, want := range wantKinds {
		got := gjson.GetBytes(encoded, fmt.Sprintf("%d.action", i)).String()
		if got != want {
			t.Errorf("encoded[%d].action = %q, want %q", i, got, want)
		}
	}
}

func TestUnknownActionRoundTripsVerbatim(t *testing.T) {
	raw := `{"action":"play_fanfare","volume":11}`

	a, err := Unmarshal([]byte(raw))
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	u, ok := a.(Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %T", a)
	}
	if u.Kind() != "play_fanfare" {
		t.Errorf("Kind() = %q, want %q", u.Kind(), "play_fanfare")
	}

	encoded, err := Marshal(u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(encoded) != raw {
		t.Errorf("round-trip = %s, want %s", encoded, raw)
	}
}

func TestScheduleJobNestedActions(t *testing.T) {
	raw := `{
		"action":"schedule_job",
		"cron":"0 22 * * *",
		"description":"night mode",
		"one_shot":true,
		"actions":[{"action":"call_service","domain":"light","service":"turn_off","entity_id":"light.all"}]
	}`

	a, err := Unmarshal([]byte(raw))
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	sj, ok := a.(ScheduleJob)
	if !ok {
		t.Fatalf("expected ScheduleJob, got %T", a)
	}
	if sj.Cron != "0 22 * * *" || !sj.OneShot {
		t.Errorf("unexpected fields: %+v", sj)
	}
	if len(sj.Actions) != 1 || sj.Actions[0].Kind() != KindCallService {
		t.Fatalf("nested actions not decoded: %+v", sj.Actions)
	}
}

func TestUnmarshalRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"action":"get_state"`},
		{name: "wrong field type", raw: `{"action":"get_state","entity_id":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tt.raw)); err == nil {
				t.Fatal("expected decode error, got nil")
			}
		})
	}
}
