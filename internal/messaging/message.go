// Package messaging holds the broker-neutral message shape shared by
// producers and consumers.
package messaging

// Attribute names attached to every queued envelope. They travel out-of-band
// (Kafka headers) so consumers can route or filter without decoding.
const (
	AttrTenantID        = "tenant_id"
	AttrSource          = "source"
	AttrDeliveryAttempt = "delivery_attempt"
)

// Message is a payload plus its routing attributes
type Message struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

// Size is the number of payload bytes counted against flow control
func (m *Message) Size() int {
	if m == nil {
		return 0
	}
	return len(m.Data)
}
