package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/nursingcollective/cartengine/internal/cart"
	"github.com/nursingcollective/cartengine/pkg/enums"
	"github.com/shopspring/decimal"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []*gcppubsub.Message
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return fakeResult{err: f.err}
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

func sampleEvent() cart.Event {
	items := []cart.Item{
		{ProductID: "cardiac", ProductName: "Cardiac Guide", ProductType: enums.ProductTypeIndividual, Price: decimal.RequireFromString("5.99"), Quantity: 2},
	}
	return cart.Event{
		Type:       enums.AnalyticsEventItemAdded,
		Mode:       enums.CartModeGuest,
		Items:      items,
		Value:      decimal.RequireFromString("11.98"),
		OccurredAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestRecordPublishesEnvelope(t *testing.T) {
	fake := &fakePublisher{}
	pub := newPublisher(fake, time.Second, nil)
	pub.newID = func() string { return "evt-1" }

	pub.Record(context.Background(), sampleEvent())
	if err := pub.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(fake.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(fake.messages))
	}
	msg := fake.messages[0]
	if msg.Attributes["event_type"] != "item_added" || msg.Attributes["event_id"] != "evt-1" {
		t.Fatalf("unexpected attributes %+v", msg.Attributes)
	}

	var envelope Envelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != EnvelopeVersion || envelope.EventID != "evt-1" {
		t.Fatalf("unexpected envelope %+v", envelope)
	}

	var data EventData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Name != "add_to_cart" || data.Currency != "USD" {
		t.Fatalf("unexpected data header %+v", data)
	}
	if data.Value != 11.98 {
		t.Fatalf("expected value 11.98, got %v", data.Value)
	}
	if len(data.Items) != 1 || data.Items[0].ItemID != "cardiac" || data.Items[0].Quantity != 2 || data.Items[0].ItemCategory != "individual" {
		t.Fatalf("unexpected items %+v", data.Items)
	}
}

func TestRecordSwallowsPublishErrors(t *testing.T) {
	fake := &fakePublisher{err: errors.New("topic deleted")}
	pub := newPublisher(fake, time.Second, nil)

	pub.Record(context.Background(), sampleEvent())
	if err := pub.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(fake.messages) != 1 {
		t.Fatalf("expected publish attempt, got %d", len(fake.messages))
	}
}

func TestGA4Names(t *testing.T) {
	cases := map[enums.AnalyticsEventType]string{
		enums.AnalyticsEventItemAdded:       "add_to_cart",
		enums.AnalyticsEventItemRemoved:     "remove_from_cart",
		enums.AnalyticsEventCheckoutStarted: "begin_checkout",
		enums.AnalyticsEventCartMerged:      "cart_merged",
	}
	for eventType, want := range cases {
		if got := GA4Name(eventType); got != want {
			t.Fatalf("GA4Name(%s) = %s, want %s", eventType, got, want)
		}
	}
}

func TestNewPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPublisher(nil, 0, nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}
