package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/helpdesk-bot/internal/events"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()

	var got []events.Event
	dispatcher.Subscribe(events.EventTicketCreated, func(ctx context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "cont-1",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 || got[0].TicketID != "cont-1" {
		t.Fatalf("delivered = %+v", got)
	}
}

func TestDispatcherIgnoresOtherEventTypes(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()

	called := false
	dispatcher.Subscribe(events.EventTicketClosed, func(ctx context.Context, e events.Event) error {
		called = true
		return nil
	})

	_ = dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated})
	if called {
		t.Fatal("handler ran for a different event type")
	}
}

func TestDispatcherContinuesPastHandlerErrors(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()

	dispatcher.Subscribe(events.EventTicketCreated, func(ctx context.Context, e events.Event) error {
		return errors.New("first handler fails")
	})
	reached := false
	dispatcher.Subscribe(events.EventTicketCreated, func(ctx context.Context, e events.Event) error {
		reached = true
		return nil
	})

	_ = dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated})
	if !reached {
		t.Fatal("second handler skipped after first errored")
	}
}
