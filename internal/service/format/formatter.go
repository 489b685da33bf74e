// Package format renders decoded agent replies as terminal text.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zhouzirui/tuft-client/internal/model/agent"
	"github.com/zhouzirui/tuft-client/internal/service/extract"
)

// ErrorPrefix starts every error line.
const ErrorPrefix = "エラー: "

// Formatter renders replies on behalf of one agent persona.
type Formatter struct {
	agentName string
}

// New creates a formatter labelling replies with agentName.
func New(agentName string) *Formatter {
	return &Formatter{agentName: agentName}
}

// AgentName returns the label used for structured replies.
func (f *Formatter) AgentName() string {
	return f.agentName
}

// Format renders a reply. A failure while rendering falls back to the
// payload's plain string form.
func (f *Formatter) Format(reply agent.Reply) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("%v", reply.Payload)
		}
	}()

	switch {
	case reply.IsError():
		return ErrorLine(reply.Payload.Text)
	case reply.Shape == agent.ShapeUnstructured:
		return Indent(reply.Raw)
	default:
		return f.structured(reply.Payload)
	}
}

func (f *Formatter) structured(p agent.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %s", f.agentName, p.Emotion, p.Text)

	if len(p.Extra) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(p.Extra))
	for key := range p.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+": "+extract.ValueString(p.Extra[key]))
	}
	b.WriteString("\n[")
	b.WriteString(strings.Join(pairs, ", "))
	b.WriteString("]")
	return b.String()
}

// ErrorLine renders a single error line.
func ErrorLine(message string) string {
	return ErrorPrefix + message
}

// Error renders err as an error line.
func Error(err error) string {
	if err == nil {
		return ErrorLine("unknown error")
	}
	return ErrorLine(err.Error())
}

// Indent pretty-prints v as two-space indented JSON, falling back to %v.
func Indent(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
