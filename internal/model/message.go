package model

import "time"

// ReceivedMessage is one delivered-but-unacknowledged message as surfaced to a workflow.
// It never carries references back to the client that received it.
type ReceivedMessage struct {
	AckID   string  `json:"ackId"`
	Message Message `json:"message"`
}

// Message is the payload half of a ReceivedMessage.
//
// Data holds the raw payload bytes as delivered unless JSON decoding was requested,
// in which case it holds the parsed JSON value instead.
type Message struct {
	ID              string            `json:"messageId"`
	Data            any               `json:"data"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	PublishTime     time.Time         `json:"publishTime"`
	OrderingKey     string            `json:"orderingKey,omitempty"`
	DeliveryAttempt int32             `json:"deliveryAttempt,omitempty"`
}

// Bytes returns the payload when it has not been decoded.
func (m Message) Bytes() ([]byte, bool) {
	b, ok := m.Data.([]byte)
	return b, ok
}

// AckIDs collects the ack IDs of msgs in order.
func AckIDs(msgs []ReceivedMessage) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.AckID)
	}
	return ids
}
