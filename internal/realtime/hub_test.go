package realtime

import (
	"context"
	"testing"
	"time"
)

func TestPublishDeliversToCompanySubscribers(t *testing.T) {
	hub := NewHub(nil)
	events, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Publish(context.Background(), Event{
		CompanyID: 1,
		Kind:      KindCreated,
		Entity:    EntityPurchaseRequest,
		ID:        42,
		Status:    "pending",
	})

	select {
	case got := <-events:
		if got.ID != 42 || got.Entity != EntityPurchaseRequest {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an event, got none")
	}
}

func TestPublishScopedToCompany(t *testing.T) {
	hub := NewHub(nil)
	mine, cancelMine := hub.Subscribe(1)
	defer cancelMine()
	theirs, cancelTheirs := hub.Subscribe(2)
	defer cancelTheirs()

	hub.Publish(context.Background(), Event{CompanyID: 2, Kind: KindUpdated, Entity: EntityCustomer, ID: 9})

	select {
	case got := <-theirs:
		if got.CompanyID != 2 {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an event for company 2")
	}

	select {
	case got := <-mine:
		t.Fatalf("company 1 received company 2's event: %+v", got)
	default:
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	events, cancel := hub.Subscribe(1)
	cancel()

	hub.Publish(context.Background(), Event{CompanyID: 1, Kind: KindUpdated, Entity: EntityCustomer, ID: 3})

	select {
	case got := <-events:
		t.Fatalf("cancelled subscriber received event: %+v", got)
	default:
	}
}

func TestPublishIgnoresZeroCompany(t *testing.T) {
	hub := NewHub(nil)
	events, cancel := hub.Subscribe(0)
	defer cancel()

	hub.Publish(context.Background(), Event{CompanyID: 0, Kind: KindUpdated, Entity: EntityCustomer})

	select {
	case got := <-events:
		t.Fatalf("expected no delivery for company 0, got %+v", got)
	default:
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub(nil)
	_, cancel := hub.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			hub.Publish(context.Background(), Event{CompanyID: 1, Kind: KindUpdated, Entity: EntityCustomer, ID: uint64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
}
