package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateBooking      = "booking"
	AggregateAvailability = "availability"

	TypeBookingReserved        = "booking.reserved.v1"
	TypeBookingConfirmed       = "booking.confirmed.v1"
	TypeBookingCancelled       = "booking.cancelled.v1"
	TypeAvailabilityAssigned   = "availability.assigned.v1"
	TypeAvailabilityUnassigned = "availability.unassigned.v1"
)

// NewEvent marshals payload as JSON.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       b,
	}, nil
}

// ForBooking builds an event on the booking aggregate.
func ForBooking(bookingID, eventType string, payload any) (Event, error) {
	return NewEvent(AggregateBooking, bookingID, eventType, payload)
}

// ForAvailability builds an event on the availability aggregate.
func ForAvailability(availabilityID, eventType string, payload any) (Event, error) {
	return NewEvent(AggregateAvailability, availabilityID, eventType, payload)
}

var ErrInvalidEvent = errors.New("invalid outbox event")

// Validate rejects events the publisher could not route: an unknown aggregate, a missing
// aggregate id or type, or a payload that is not a JSON document.
func (e Event) Validate() error {
	switch {
	case e.AggregateType != AggregateBooking && e.AggregateType != AggregateAvailability:
		return fmt.Errorf("%w: aggregate type %q", ErrInvalidEvent, e.AggregateType)
	case e.AggregateID == "":
		return fmt.Errorf("%w: missing aggregate id", ErrInvalidEvent)
	case e.EventType == "":
		return fmt.Errorf("%w: missing event type", ErrInvalidEvent)
	case !json.Valid(e.Payload):
		return fmt.Errorf("%w: payload is not JSON", ErrInvalidEvent)
	}
	return nil
}
