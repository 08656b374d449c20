package bus

import (
	"context"
	"testing"
	"time"

	"github.com/mordomohq/mordomo/action"
)

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBus(8)
	defer b.Close()

	got := make(chan *Event, 1)
	b.Subscribe(EventScheduleJob, func(_ context.Context, evt *Event) { got <- evt })
	other := make(chan *Event, 1)
	b.Subscribe(EventRemoveJob, func(_ context.Context, evt *Event) { other <- evt })

	evt, err := NewEvent(EventScheduleJob, "whatsapp", ScheduleJobRequest{
		Cron:        "0 8 * * *",
		Description: "open the blinds",
		Actions:     action.List{action.GetAreas{}},
	})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	b.Publish(evt)

	select {
	case received := <-got:
		if received.Type != EventScheduleJob || received.Source != "whatsapp" {
			t.Errorf("received %s from %s, want %s from whatsapp", received.Type, received.Source, EventScheduleJob)
		}
		if received.ID == "" || received.Timestamp.IsZero() {
			t.Errorf("event missing ID or timestamp: %+v", received)
		}
		var payload ScheduleJobRequest
		if err := received.ParseData(&payload); err != nil {
			t.Fatalf("ParseData() error = %v", err)
		}
		if payload.Cron != "0 8 * * *" || payload.Description != "open the blinds" {
			t.Errorf("payload = %+v, want published request", payload)
		}
		if len(payload.Actions) != 1 || payload.Actions[0].Kind() != action.KindGetAreas {
			t.Errorf("payload actions = %v, want one %s", payload.Actions, action.KindGetAreas)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case evt := <-other:
		t.Fatalf("subscriber for %s received %s", EventRemoveJob, evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	b := NewBus(8)
	defer b.Close()

	got := make(chan *Event, 4)
	id := b.Subscribe(EventJobCompleted, func(_ context.Context, evt *Event) { got <- evt })

	evt, err := NewEvent(EventJobCompleted, "scheduler", nil)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	b.Publish(evt)
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered before unsubscribe")
	}

	b.Unsubscribe(id)
	b.Unsubscribe("sub-999")

	evt, err = NewEvent(EventJobCompleted, "scheduler", nil)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	b.Publish(evt)
	select {
	case evt := <-got:
		t.Fatalf("unsubscribed handler received %s", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	t.Parallel()

	b := NewBus(8)
	defer b.Close()

	b.Subscribe(EventScheduleJob, func(_ context.Context, _ *Event) { panic("boom") })
	got := make(chan struct{}, 2)
	b.Subscribe(EventScheduleJob, func(_ context.Context, _ *Event) { got <- struct{}{} })

	for i := 0; i < 2; i++ {
		evt, err := NewEvent(EventScheduleJob, "test", RemoveJobRequest{JobID: "abc12345"})
		if err != nil {
			t.Fatalf("NewEvent() error = %v", err)
		}
		b.Publish(evt)
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("delivery %d lost after handler panic", i+1)
		}
	}
}
