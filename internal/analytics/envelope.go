package analytics

import (
	"encoding/json"
	"time"

	"github.com/nursingcollective/cartengine/internal/cart"
	"github.com/nursingcollective/cartengine/pkg/enums"
)

const (
	EnvelopeVersion = 1
	Currency        = "USD"
)

// Envelope is the Pub/Sub message body for every cart event.
type Envelope struct {
	Version    int                      `json:"version"`
	EventID    string                   `json:"event_id"`
	EventType  enums.AnalyticsEventType `json:"event_type"`
	OccurredAt time.Time                `json:"occurred_at"`
	Data       json.RawMessage          `json:"data"`
}

// EventData follows the GA4 ecommerce shape so the stream can be replayed
// into the measurement protocol unchanged.
type EventData struct {
	Name     string         `json:"name"`
	CartMode enums.CartMode `json:"cart_mode"`
	Currency string         `json:"currency"`
	Value    float64        `json:"value"`
	Items    []Item         `json:"items"`
}

type Item struct {
	ItemID       string  `json:"item_id"`
	ItemName     string  `json:"item_name,omitempty"`
	ItemCategory string  `json:"item_category,omitempty"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
}

var ga4Names = map[enums.AnalyticsEventType]string{
	enums.AnalyticsEventItemAdded:       "add_to_cart",
	enums.AnalyticsEventItemRemoved:     "remove_from_cart",
	enums.AnalyticsEventCheckoutStarted: "begin_checkout",
	enums.AnalyticsEventCartMerged:      "cart_merged",
}

// GA4Name maps an event type to its GA4 event name.
func GA4Name(t enums.AnalyticsEventType) string {
	if name, ok := ga4Names[t]; ok {
		return name
	}
	return t.String()
}

func buildData(event cart.Event) EventData {
	items := make([]Item, 0, len(event.Items))
	for _, line := range event.Items {
		items = append(items, Item{
			ItemID:       line.ProductID,
			ItemName:     line.ProductName,
			ItemCategory: line.ProductType.String(),
			Price:        line.Price.InexactFloat64(),
			Quantity:     line.Quantity,
		})
	}
	return EventData{
		Name:     GA4Name(event.Type),
		CartMode: event.Mode,
		Currency: Currency,
		Value:    event.Value.Round(2).InexactFloat64(),
		Items:    items,
	}
}

// NewEnvelope wraps event with the given id.
func NewEnvelope(eventID string, event cart.Event) (Envelope, error) {
	data, err := json.Marshal(buildData(event))
	if err != nil {
		return Envelope{}, err
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return Envelope{
		Version:    EnvelopeVersion,
		EventID:    eventID,
		EventType:  event.Type,
		OccurredAt: occurred.UTC(),
		Data:       data,
	}, nil
}
