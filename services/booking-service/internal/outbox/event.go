package outbox

// Kafka topic names equal the event type (one event per topic).
const EventBookingCreated = "booking.created.v1"

// Event is the domain event envelope written to the outbox table inside the
// same transaction as the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
