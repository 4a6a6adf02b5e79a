package wire

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Shape is the cheap, pre-unmarshal classification of an inbound frame.
type Shape int

const (
	// ShapeInvalid means the frame isn't a recognizable CDP message at
	// all (not even valid JSON, or missing both id and method).
	ShapeInvalid Shape = iota
	// ShapeResponse means the frame is a successful command response.
	ShapeResponse
	// ShapeErrorResponse means the frame is a command response carrying
	// a CDP-level "error" object.
	ShapeErrorResponse
	// ShapeEvent means the frame is an unsolicited event notification.
	ShapeEvent
)

// Classify inspects raw with three cheap gjson field probes — "id",
// "error", "method" — to decide the frame's shape before paying for a
// full json.Unmarshal. This mirrors how a reader loop needs to dispatch
// a frame on the wire: by presence of a couple of top-level fields, not
// by its full content.
func Classify(raw []byte) Shape {
	if !gjson.ValidBytes(raw) {
		return ShapeInvalid
	}
	hasID := gjson.GetBytes(raw, "id").Exists()
	hasMethod := gjson.GetBytes(raw, "method").Exists()
	hasError := gjson.GetBytes(raw, "error").Exists()

	switch {
	case hasID && hasError:
		return ShapeErrorResponse
	case hasID:
		return ShapeResponse
	case hasMethod:
		return ShapeEvent
	default:
		return ShapeInvalid
	}
}

// Parse fully unmarshals raw into a Message. Callers typically call
// Classify first to decide how to route the frame, then Parse to get the
// typed value.
func Parse(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("unmarshal cdp message: %w", err)
	}
	return m, nil
}
