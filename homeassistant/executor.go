package homeassistant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mordomohq/mordomo/action"
	"github.com/mordomohq/mordomo/bus"
	"github.com/mordomohq/mordomo/logger"
)

// registryTTL caps how often registry fetches hit the instance when a
// job runs several area-aware actions back to back.
const registryTTL = 30 * time.Second

const (
	maxDomainStates  = 20
	maxEntityMatches = 30
	maxSummaryLines  = 8
)

// relevantStateAttrs are the attributes worth echoing alongside a state.
var relevantStateAttrs = []string{
	"temperature", "humidity", "brightness", "color_temp",
	"battery_level", "current_temperature", "hvac_action",
	"media_title", "source", "volume_level",
}

// summaryDomains are the domains included in the house summary, in
// display order.
var summaryDomains = []string{
	"light", "switch", "climate", "cover", "lock",
	"alarm_control_panel", "media_player", "sensor", "binary_sensor",
}

// RegistrySource provides registry snapshots. *RegistryClient is the
// production implementation.
type RegistrySource interface {
	Registries(ctx context.Context) (*RegistrySnapshot, error)
}

// Executor maps action variants onto Home Assistant API calls. It is
// the production action.Executor.
type Executor struct {
	client   *Client
	registry RegistrySource
	bus      *bus.Bus

	regMu      sync.Mutex
	regSnap    *RegistrySnapshot
	regFetched time.Time
}

// NewExecutor wires the REST client, the registry source, and the event
// bus carrying schedule_job / remove_job intake. The bus may be nil
// when no scheduler is listening.
func NewExecutor(client *Client, registry RegistrySource, b *bus.Bus) *Executor {
	return &Executor{client: client, registry: registry, bus: b}
}

// Execute runs the actions in order, one Result per action. Failures
// are contained in their Result entry and never abort the rest.
func (e *Executor) Execute(ctx context.Context, actions action.List) []action.Result {
	results := make([]action.Result, 0, len(actions))
	for _, a := range actions {
		results = append(results, e.runOne(ctx, a))
	}
	return results
}

func (e *Executor) runOne(ctx context.Context, a action.Action) (res action.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("action execution panic", "action", a.Kind(), "panic", r)
			res = action.Result{Action: a.Kind(), Error: fmt.Sprintf("action panic: %v", r)}
		}
	}()

	switch v := a.(type) {
	case action.CallService:
		return e.callService(ctx, v)
	case action.GetState:
		return e.getState(ctx, v)
	case action.GetStates:
		return e.getStates(ctx, v)
	case action.GetArea:
		return e.getArea(ctx, v)
	case action.GetAreas:
		return e.getAreas(ctx)
	case action.GetHouseSummary:
		return e.houseSummary(ctx)
	case action.CreateAutomation:
		return e.createAutomation(ctx, v)
	case action.ScheduleJob:
		return e.scheduleJob(v)
	case action.RemoveJob:
		return e.removeJob(v)
	case action.ListEntities:
		return e.listEntities(ctx, v)
	default:
		return action.Result{Action: a.Kind(), Error: fmt.Sprintf("unknown action %q", a.Kind())}
	}
}

func (e *Executor) callService(ctx context.Context, a action.CallService) action.Result {
	if a.Domain == "" || a.Service == "" {
		return action.Result{Action: a.Kind(), Error: "domain and service are required"}
	}

	data := make(map[string]any, len(a.Data)+1)
	for k, v := range a.Data {
		data[k] = v
	}
	if a.EntityID != "" {
		data["entity_id"] = a.EntityID
	}

	if err := e.client.CallService(ctx, a.Domain, a.Service, data); err != nil {
		return action.ErrorResult(a, err)
	}

	output := fmt.Sprintf("OK: %s.%s", a.Domain, a.Service)
	if a.EntityID != "" {
		output += " on " + a.EntityID
	}
	return action.Result{Action: a.Kind(), Output: output}
}

func (e *Executor) getState(ctx context.Context, a action.GetState) action.Result {
	if a.EntityID == "" {
		return action.Result{Action: a.Kind(), Error: "entity_id is required"}
	}

	state, err := e.client.State(ctx, a.EntityID)
	if err != nil {
		return action.ErrorResult(a, err)
	}

	var sb strings.Builder
	sb.WriteString(state.FriendlyName() + ": " + state.State)
	if unit := state.Unit(); unit != "" {
		sb.WriteString(" " + unit)
	}
	for _, attr := range relevantStateAttrs {
		if v, ok := state.Attributes[attr]; ok {
			fmt.Fprintf(&sb, "\n  %s: %v", attr, v)
		}
	}
	return action.Result{Action: a.Kind(), Output: sb.String()}
}

func (e *Executor) getStates(ctx context.Context, a action.GetStates) action.Result {
	states, err := e.client.States(ctx)
	if err != nil {
		return action.ErrorResult(a, err)
	}

	var lines []string
	switch {
	case len(a.EntityIDs) > 0:
		byID := make(map[string]EntityState, len(states))
		for _, s := range states {
			byID[s.EntityID] = s
		}
		for _, id := range a.EntityIDs {
			if s, ok := byID[id]; ok {
				lines = append(lines, stateLine(s))
			}
		}
	case a.Domain != "":
		for _, s := range states {
			if s.Domain() == a.Domain {
				lines = append(lines, stateLine(s))
				if len(lines) == maxDomainStates {
					break
				}
			}
		}
	case a.Area != "":
		snap, err := e.registries(ctx)
		if err != nil {
			return action.ErrorResult(a, err)
		}
		area, ok := snap.AreaByName(a.Area)
		if !ok {
			return action.Result{Action: a.Kind(), Output: fmt.Sprintf("area %q not found", a.Area)}
		}
		inArea := snap.EntitiesInArea(area.ID)
		for _, s := range states {
			if inArea[s.EntityID] {
				lines = append(lines, stateLine(s))
			}
		}
	}

	if len(lines) == 0 {
		return action.Result{Action: a.Kind(), Output: "no entities found"}
	}
	return action.Result{Action: a.Kind(), Output: "States:\n" + strings.Join(lines, "\n")}
}

func (e *Executor) getArea(ctx context.Context, a action.GetArea) action.Result {
	if a.Area == "" {
		return action.Result{Action: a.Kind(), Error: "area is required"}
	}

	snap, err := e.registries(ctx)
	if err != nil {
		return action.ErrorResult(a, err)
	}
	area, ok := snap.AreaByName(a.Area)
	if !ok {
		names := areaNames(snap)
		return action.Result{
			Action: a.Kind(),
			Output: fmt.Sprintf("area %q not found; available areas: %s", a.Area, strings.Join(names, ", ")),
		}
	}

	states, err := e.client.States(ctx)
	if err != nil {
		return action.ErrorResult(a, err)
	}

	inArea := snap.EntitiesInArea(area.ID)
	var lines []string
	for _, s := range states {
		if s.State == "unavailable" || s.State == "unknown" {
			continue
		}
		if inArea[s.EntityID] {
			lines = append(lines, stateLine(s))
		}
	}
	if len(lines) == 0 {
		return action.Result{Action: a.Kind(), Output: fmt.Sprintf("area %q has no active entities", area.Name)}
	}
	return action.Result{
		Action: a.Kind(),
		Output: fmt.Sprintf("%s (%d entities):\n%s", area.Name, len(lines), strings.Join(lines, "\n")),
	}
}

func (e *Executor) getAreas(ctx context.Context) action.Result {
	kind := action.KindGetAreas
	snap, err := e.registries(ctx)
	if err != nil {
		return action.Result{Action: kind, Error: err.Error()}
	}
	if len(snap.Areas) == 0 {
		return action.Result{Action: kind, Output: "no areas configured"}
	}

	var sb strings.Builder
	sb.WriteString("Areas:")
	for _, name := range areaNames(snap) {
		sb.WriteString("\n  - " + name)
	}
	return action.Result{Action: kind, Output: sb.String()}
}

func (e *Executor) houseSummary(ctx context.Context) action.Result {
	kind := action.KindGetHouseSummary
	states, err := e.client.States(ctx)
	if err != nil {
		return action.Result{Action: kind, Error: err.Error()}
	}

	byDomain := make(map[string][]EntityState)
	for _, s := range states {
		if s.State == "unavailable" || s.State == "unknown" {
			continue
		}
		byDomain[s.Domain()] = append(byDomain[s.Domain()], s)
	}

	var sb strings.Builder
	sb.WriteString("House summary:")
	empty := true
	for _, domain := range summaryDomains {
		group := byDomain[domain]
		if len(group) == 0 {
			continue
		}
		empty = false
		sort.Slice(group, func(i, j int) bool { return group[i].EntityID < group[j].EntityID })
		fmt.Fprintf(&sb, "\n%s (%d):", domain, len(group))
		for i, s := range group {
			if i == maxSummaryLines {
				fmt.Fprintf(&sb, "\n  ... and %d more", len(group)-maxSummaryLines)
				break
			}
			sb.WriteString("\n" + stateLine(s))
		}
	}
	if empty {
		return action.Result{Action: kind, Output: "no active entities"}
	}
	return action.Result{Action: kind, Output: sb.String()}
}

func (e *Executor) createAutomation(ctx context.Context, a action.CreateAutomation) action.Result {
	if len(a.Triggers) == 0 || len(a.Steps) == 0 {
		return action.Result{Action: a.Kind(), Error: "trigger and steps are required"}
	}

	alias := a.Alias
	if alias == "" {
		alias = "Mordomo Automation"
	}
	description := a.Description
	if description == "" {
		description = "Created by Mordomo"
	}
	mode := a.Mode
	if mode == "" {
		mode = "single"
	}
	conditions := a.Conditions
	if conditions == nil {
		conditions = []map[string]any{}
	}

	// The config API wants the step list under "action".
	config := map[string]any{
		"alias":       alias,
		"description": description,
		"trigger":     a.Triggers,
		"condition":   conditions,
		"action":      a.Steps,
		"mode":        mode,
	}

	id := newAutomationID()
	if err := e.client.CreateAutomation(ctx, id, config); err != nil {
		return action.ErrorResult(a, err)
	}
	return action.Result{Action: a.Kind(), Output: fmt.Sprintf("automation %q created with id %s", alias, id)}
}

func newAutomationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (e *Executor) scheduleJob(a action.ScheduleJob) action.Result {
	if a.Cron == "" {
		return action.Result{Action: a.Kind(), Error: "cron expression is required"}
	}
	if e.bus == nil {
		return action.Result{Action: a.Kind(), Error: "no scheduler attached"}
	}

	description := a.Description
	if description == "" {
		description = "Scheduled task"
	}

	evt, err := bus.NewEvent(bus.EventScheduleJob, "scheduler", bus.ScheduleJobRequest{
		Cron:        a.Cron,
		Description: description,
		Actions:     a.Actions,
		OneShot:     a.OneShot,
	})
	if err != nil {
		return action.ErrorResult(a, err)
	}
	e.bus.Publish(evt)
	return action.Result{Action: a.Kind(), Output: fmt.Sprintf("job scheduled: %q with cron %q", description, a.Cron)}
}

func (e *Executor) removeJob(a action.RemoveJob) action.Result {
	if a.JobID == "" {
		return action.Result{Action: a.Kind(), Error: "job_id is required"}
	}
	if e.bus == nil {
		return action.Result{Action: a.Kind(), Error: "no scheduler attached"}
	}

	evt, err := bus.NewEvent(bus.EventRemoveJob, "scheduler", bus.RemoveJobRequest{JobID: a.JobID})
	if err != nil {
		return action.ErrorResult(a, err)
	}
	e.bus.Publish(evt)
	return action.Result{Action: a.Kind(), Output: fmt.Sprintf("removal of job %q requested", a.JobID)}
}

func (e *Executor) listEntities(ctx context.Context, a action.ListEntities) action.Result {
	snap, err := e.registries(ctx)
	if err != nil {
		return action.ErrorResult(a, err)
	}

	search := strings.ToLower(strings.TrimSpace(a.Search))
	var ids []string
	for _, entry := range snap.Entities {
		if a.Domain != "" && !strings.HasPrefix(entry.EntityID, a.Domain+".") {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(entry.EntityID), search) &&
			!strings.Contains(strings.ToLower(entry.DisplayName()), search) {
			continue
		}
		ids = append(ids, entry.EntityID)
	}

	if len(ids) == 0 {
		return action.Result{Action: a.Kind(), Output: "no entities match"}
	}

	sort.Strings(ids)
	truncated := 0
	if len(ids) > maxEntityMatches {
		truncated = len(ids) - maxEntityMatches
		ids = ids[:maxEntityMatches]
	}

	var sb strings.Builder
	sb.WriteString("Entities:")
	for _, id := range ids {
		sb.WriteString("\n  - " + id)
	}
	if truncated > 0 {
		fmt.Fprintf(&sb, "\n  ... and %d more", truncated)
	}
	return action.Result{Action: a.Kind(), Output: sb.String()}
}

func stateLine(s EntityState) string {
	line := fmt.Sprintf("  - %s: %s", s.FriendlyName(), s.State)
	if unit := s.Unit(); unit != "" {
		line += " " + unit
	}
	return line
}

func areaNames(snap *RegistrySnapshot) []string {
	names := make([]string, 0, len(snap.Areas))
	for _, a := range snap.Areas {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// registries returns a cached snapshot, refetching after registryTTL.
func (e *Executor) registries(ctx context.Context) (*RegistrySnapshot, error) {
	e.regMu.Lock()
	defer e.regMu.Unlock()

	if e.regSnap != nil && time.Since(e.regFetched) < registryTTL {
		return e.regSnap, nil
	}
	if e.registry == nil {
		return nil, fmt.Errorf("no registry source configured")
	}

	snap, err := e.registry.Registries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registries: %w", err)
	}
	e.regSnap = snap
	e.regFetched = time.Now()
	return snap, nil
}
