// Package extract decodes raw agent responses into structured replies.
//
// The upstream response envelope has changed across server versions, so
// decoding is an ordered chain of shape attempts, most specific first. The
// chain always produces a renderable reply: an unrecognized shape is returned
// as an unstructured reply holding the original value.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/zhouzirui/tuft-client/internal/analysis/emotion"
	"github.com/zhouzirui/tuft-client/internal/model/agent"
)

// attempt tries one known response shape.
type attempt func(raw any) (agent.Reply, bool)

var chain = []attempt{
	fromErrorEnvelope,
	fromMetadata,
	fromContentMap,
	fromContentText,
}

// errorMarkers are checked in order; the first present wins.
var errorMarkers = []string{"__error__", "error"}

// textKeys name the payload field holding the reply text, in priority order.
var textKeys = []string{"content", "text"}

// Extract decodes raw into a reply. It never panics.
func Extract(raw any) (reply agent.Reply) {
	defer func() {
		if r := recover(); r != nil {
			reply = agent.Unstructured(raw)
		}
	}()

	for _, try := range chain {
		if reply, ok := try(raw); ok {
			return reply
		}
	}
	return agent.Unstructured(raw)
}

func fromErrorEnvelope(raw any) (agent.Reply, bool) {
	root, ok := raw.(map[string]any)
	if !ok {
		return agent.Reply{}, false
	}
	for _, key := range errorMarkers {
		value, present := root[key]
		if !present || value == nil {
			continue
		}
		return agent.ErrorReply(errorMessage(value)), true
	}
	return agent.Reply{}, false
}

func fromMetadata(raw any) (agent.Reply, bool) {
	msg, ok := replyMessage(raw)
	if !ok {
		return agent.Reply{}, false
	}
	kwargs, ok := msg["additional_kwargs"].(map[string]any)
	if !ok {
		return agent.Reply{}, false
	}
	fields, ok := asObject(kwargs["json_data"])
	if !ok {
		return agent.Reply{}, false
	}

	fallback, _ := contentText(msg["content"])
	return agent.Reply{Shape: agent.ShapeMetadata, Payload: decodeFields(fields, fallback)}, true
}

func fromContentMap(raw any) (agent.Reply, bool) {
	msg, ok := replyMessage(raw)
	if !ok {
		return agent.Reply{}, false
	}
	fields, ok := msg["content"].(map[string]any)
	if !ok {
		return agent.Reply{}, false
	}
	return agent.Reply{Shape: agent.ShapeContentMap, Payload: decodeFields(fields, "")}, true
}

func fromContentText(raw any) (agent.Reply, bool) {
	msg, ok := replyMessage(raw)
	if !ok {
		return agent.Reply{}, false
	}
	text, ok := contentText(msg["content"])
	if !ok {
		return agent.Reply{}, false
	}

	if fields, ok := ParseEncoded(text); ok {
		return agent.Reply{Shape: agent.ShapeContentJSON, Payload: decodeFields(fields, "")}, true
	}
	return agent.Reply{
		Shape:   agent.ShapeContentText,
		Payload: agent.Payload{Text: text, Emotion: emotion.Default},
	}, true
}

// ParseEncoded decodes text holding a JSON object, optionally wrapped in a
// fenced ```json block. Anything other than a single object is rejected,
// including an object followed by trailing text.
func ParseEncoded(text string) (map[string]any, bool) {
	body := stripFence(strings.TrimSpace(text))
	if !strings.HasPrefix(body, "{") {
		return nil, false
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return fields, true
}

func stripFence(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return text
	}
	rest := text[start+3:]
	rest = strings.TrimPrefix(rest, "json")
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// replyMessage locates the agent message: output.messages first, then the
// thread-state messages list. When messages carry a type, the last "ai"
// message is used; untyped lists use the first message.
func replyMessage(raw any) (map[string]any, bool) {
	root, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}

	var list []any
	if output, ok := root["output"].(map[string]any); ok {
		list, _ = output["messages"].([]any)
	}
	if list == nil {
		list, _ = root["messages"].([]any)
	}
	if len(list) == 0 {
		return nil, false
	}

	typed := false
	var lastAI map[string]any
	for _, item := range list {
		msg, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if kind, ok := msg["type"].(string); ok {
			typed = true
			if kind == "ai" {
				lastAI = msg
			}
		}
	}
	if typed {
		return lastAI, lastAI != nil
	}

	first, ok := list[0].(map[string]any)
	return first, ok
}

// contentText returns textual content, joining text parts of a content list.
func contentText(content any) (string, bool) {
	switch v := content.(type) {
	case string:
		return v, true
	case []any:
		var b strings.Builder
		found := false
		for _, part := range v {
			switch p := part.(type) {
			case string:
				b.WriteString(p)
				found = true
			case map[string]any:
				if text, ok := p["text"].(string); ok && (p["type"] == nil || p["type"] == "text") {
					b.WriteString(text)
					found = true
				}
			}
		}
		return b.String(), found
	default:
		return "", false
	}
}

func asObject(v any) (map[string]any, bool) {
	switch data := v.(type) {
	case map[string]any:
		return data, true
	case string:
		return ParseEncoded(data)
	default:
		return nil, false
	}
}

func decodeFields(fields map[string]any, fallbackText string) agent.Payload {
	payload := agent.Payload{
		Text:    fallbackText,
		Emotion: emotion.Normalize(fields["emotion"]),
	}

	consumed := ""
	for _, key := range textKeys {
		if value, ok := fields[key]; ok && value != nil {
			payload.Text = ValueString(value)
			consumed = key
			break
		}
	}

	for key, value := range fields {
		if key == "emotion" || key == consumed {
			continue
		}
		if payload.Extra == nil {
			payload.Extra = make(map[string]any)
		}
		payload.Extra[key] = value
	}
	return payload
}

func errorMessage(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]any:
		for _, key := range []string{"message", "error"} {
			if s, ok := e[key].(string); ok {
				return s
			}
		}
	}
	return ValueString(v)
}

// ValueString renders strings verbatim and everything else as compact JSON.
func ValueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
