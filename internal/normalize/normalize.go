// Package normalize turns Pub/Sub wire responses into plain records that are
// safe to serialize and hand to a workflow.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"pubsubnode/internal/model"
)

// ErrDecode is returned when a payload was expected to be JSON but is not.
var ErrDecode = errors.New("message payload is not valid JSON")

var marshaler = protojson.MarshalOptions{UseProtoNames: false}

// Project copies the data fields of a delivered message into a fresh record.
// Nothing in the result refers back to rm or to the stream it came from.
func Project(rm *pubsubpb.ReceivedMessage) model.ReceivedMessage {
	msg := rm.GetMessage()
	out := model.ReceivedMessage{
		AckID: rm.GetAckId(),
		Message: model.Message{
			ID:              msg.GetMessageId(),
			Data:            append([]byte(nil), msg.GetData()...),
			OrderingKey:     msg.GetOrderingKey(),
			DeliveryAttempt: rm.GetDeliveryAttempt(),
		},
	}
	if attrs := msg.GetAttributes(); len(attrs) > 0 {
		out.Message.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			out.Message.Attributes[k] = v
		}
	}
	if ts := msg.GetPublishTime(); ts != nil {
		out.Message.PublishTime = ts.AsTime()
	}
	return out
}

// ProjectAll projects every message of a pull response in order.
func ProjectAll(rms []*pubsubpb.ReceivedMessage) []model.ReceivedMessage {
	out := make([]model.ReceivedMessage, 0, len(rms))
	for _, rm := range rms {
		out = append(out, Project(rm))
	}
	return out
}

// DecodeJSON replaces the raw payload of m with its parsed JSON value.
// A message that is already decoded is left alone.
func DecodeJSON(m *model.ReceivedMessage) error {
	raw, ok := m.Message.Bytes()
	if !ok {
		return nil
	}
	if !utf8.Valid(raw) {
		return fmt.Errorf("%w: message %s is not UTF-8", ErrDecode, m.Message.ID)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: message %s: %v", ErrDecode, m.Message.ID, err)
	}
	m.Message.Data = v
	return nil
}

// DecodeAll decodes every message, stopping at the first failure.
func DecodeAll(msgs []model.ReceivedMessage) error {
	for i := range msgs {
		if err := DecodeJSON(&msgs[i]); err != nil {
			return err
		}
	}
	return nil
}

// Plain converts an SDK response into a detached JSON object by a
// serialize/deserialize round-trip. Field names follow the v1 JSON contract.
func Plain(m proto.Message) (map[string]any, error) {
	b, err := marshaler.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize response: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %w", err)
	}
	return out, nil
}
