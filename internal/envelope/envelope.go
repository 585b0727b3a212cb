// Package envelope classifies remote response bodies. A body is either JSON
// usable as is, JSON wrapping one or more HTML fragments, bare markup, or
// opaque text. Classification never fails; unexpected shapes degrade to the
// weakest representation that still preserves the payload.
package envelope

import (
	"encoding/json"
	"fmt"
	"strings"

	"plansync/internal/fragment"
)

// Kind names the variant an envelope was classified as.
type Kind string

const (
	KindFragment Kind = "fragment"
	KindSections Kind = "sections"
	KindJSON     Kind = "json"
	KindText     Kind = "text"
)

// SubSection is one named entry of an html object map. Entries that were not
// objects are carried through untouched in Value.
type SubSection struct {
	Meta   map[string]any     `json:"meta,omitempty"`
	Parsed *fragment.Snapshot `json:"parsed,omitempty"`
	Value  any                `json:"-"`
}

// MarshalJSON keeps non-object entries in their original form.
func (s SubSection) MarshalJSON() ([]byte, error) {
	if s.Parsed == nil {
		return json.Marshal(s.Value)
	}
	type plain SubSection
	return json.Marshal(plain(s))
}

// Envelope is the classified form of one response body.
type Envelope struct {
	Kind     Kind                  `json:"-"`
	Parsed   *fragment.Snapshot    `json:"parsed,omitempty"`
	Sections map[string]SubSection `json:"sections,omitempty"`
	Meta     map[string]any        `json:"meta,omitempty"`
	JSON     any                   `json:"json,omitempty"`
	Text     *string               `json:"text,omitempty"`
	Warnings []string              `json:"-"`
}

// Data returns the JSON document stored alongside a section's raw body.
func (e Envelope) Data() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// Unwrap classifies body using the declared content type and the leading
// characters of the body.
func Unwrap(p fragment.Parser, body, contentType string) Envelope {
	if looksLikeJSON(body, contentType) {
		var decoded any
		if err := json.Unmarshal([]byte(body), &decoded); err == nil {
			switch v := decoded.(type) {
			case map[string]any:
				return fromObject(p, v)
			case []any:
				return Envelope{Kind: KindJSON, JSON: v}
			}
			if decoded != nil {
				return Envelope{Kind: KindJSON, JSON: decoded}
			}
		}
	}
	if LooksLikeHTML(body) {
		env := Envelope{Kind: KindFragment}
		env.Parsed = parse(p, body, "body", &env.Warnings)
		return env
	}
	text := body
	return Envelope{Kind: KindText, Text: &text}
}

func fromObject(p fragment.Parser, obj map[string]any) Envelope {
	switch html := obj["html"].(type) {
	case string:
		env := Envelope{Kind: KindFragment, Meta: siblings(obj, "html")}
		env.Parsed = parse(p, html, "html", &env.Warnings)
		return env
	case map[string]any:
		env := Envelope{
			Kind:     KindSections,
			Meta:     siblings(obj, "html"),
			Sections: make(map[string]SubSection, len(html)),
		}
		for name, raw := range html {
			entry, ok := raw.(map[string]any)
			if !ok {
				env.Sections[name] = SubSection{Value: raw}
				continue
			}
			content, _ := entry["content"].(string)
			env.Sections[name] = SubSection{
				Meta:   siblings(entry, "content"),
				Parsed: parse(p, content, name, &env.Warnings),
			}
		}
		return env
	default:
		return Envelope{Kind: KindJSON, JSON: obj}
	}
}

func parse(p fragment.Parser, html, scope string, warnings *[]string) *fragment.Snapshot {
	snap, err := p.Snapshot(html)
	if err != nil {
		snap.ParseError = err.Error()
		*warnings = append(*warnings, fmt.Sprintf("%s: %v", scope, err))
	}
	return &snap
}

// siblings copies obj without key; nil when nothing remains.
func siblings(obj map[string]any, key string) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if k != key {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func looksLikeJSON(body, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		return true
	}
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// LooksLikeHTML reports whether body starts with a tag-like token.
func LooksLikeHTML(body string) bool {
	return strings.HasPrefix(strings.TrimLeft(body, " \t\r\n"), "<")
}

// Object decodes body as a JSON object. It returns nil for anything else.
func Object(body string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil
	}
	return obj
}

// CenterContent returns center.content from a JSON wrapper, the common
// location of a view's HTML.
func CenterContent(obj map[string]any) string {
	center, _ := obj["center"].(map[string]any)
	content, _ := center["content"].(string)
	return content
}
