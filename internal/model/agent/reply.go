package agent

import "github.com/zhouzirui/tuft-client/internal/analysis/emotion"

// Shape 标识解码时命中的响应结构。
type Shape string

const (
	ShapeError        Shape = "error"
	ShapeMetadata     Shape = "metadata"
	ShapeContentMap   Shape = "content_map"
	ShapeContentJSON  Shape = "content_json"
	ShapeContentText  Shape = "content_text"
	ShapeUnstructured Shape = "unstructured"
)

// Payload is the canonical decoded agent reply.
type Payload struct {
	Text    string         `json:"text"`
	Emotion emotion.Label  `json:"emotion"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Reply is the result of decoding a raw response. Exactly one of Payload or
// Raw is meaningful: Raw is only set for ShapeUnstructured.
type Reply struct {
	Shape   Shape
	Payload Payload
	Raw     any
}

// IsError reports whether the reply carries a server or transport error message.
func (r Reply) IsError() bool {
	return r.Shape == ShapeError
}

// IsStructured reports whether a payload was decoded.
func (r Reply) IsStructured() bool {
	return r.Shape != ShapeUnstructured && r.Shape != ShapeError
}

// ErrorReply wraps an error message with the default emotion.
func ErrorReply(message string) Reply {
	return Reply{
		Shape:   ShapeError,
		Payload: Payload{Text: message, Emotion: emotion.Default},
	}
}

// Unstructured tags a response whose shape was not recognized.
func Unstructured(raw any) Reply {
	return Reply{Shape: ShapeUnstructured, Raw: raw}
}
