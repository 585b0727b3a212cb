package logs

import (
	"encoding/json"
	"strconv"
	"strings"

	"plansync/internal/logging"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Filter keeps lines that mention one order or run and reach a minimum level.
// Zero values match everything.
type Filter struct {
	OrderID  int64
	RunID    string
	MinLevel string
}

// Empty reports whether the filter keeps every line.
func (f Filter) Empty() bool {
	return f.OrderID == 0 && f.RunID == "" && strings.TrimSpace(f.MinLevel) == ""
}

// Apply returns the matching subset of lines in their original order.
func (f Filter) Apply(lines []string) []string {
	if f.Empty() {
		return lines
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if f.Match(line) {
			out = append(out, line)
		}
	}
	return out
}

// Match checks a single line.
func (f Filter) Match(line string) bool {
	var entry map[string]any
	if strings.HasPrefix(strings.TrimSpace(line), "{") && json.Unmarshal([]byte(line), &entry) == nil {
		return f.matchEntry(entry)
	}
	return f.matchText(line)
}

func (f Filter) matchEntry(entry map[string]any) bool {
	if f.OrderID != 0 {
		id, ok := entry[logging.FieldOrderID].(float64)
		if !ok || int64(id) != f.OrderID {
			return false
		}
	}
	if f.RunID != "" {
		if run, _ := entry[logging.FieldRunID].(string); run != f.RunID {
			return false
		}
	}
	level, _ := entry["level"].(string)
	return f.levelOK(level)
}

// matchText handles console-format lines, which carry attributes as key=value
// pairs after the message.
func (f Filter) matchText(line string) bool {
	if f.OrderID != 0 && !containsPair(line, logging.FieldOrderID, strconv.FormatInt(f.OrderID, 10)) {
		return false
	}
	if f.RunID != "" && !containsPair(line, logging.FieldRunID, f.RunID) {
		return false
	}
	if strings.TrimSpace(f.MinLevel) == "" {
		return true
	}
	for _, word := range strings.Fields(line) {
		if _, ok := levelRank[strings.ToLower(word)]; ok {
			return f.levelOK(word)
		}
	}
	return false
}

func containsPair(line, key, value string) bool {
	for _, word := range strings.Fields(line) {
		if word == key+"="+value || word == key+"=\""+value+"\"" {
			return true
		}
	}
	return false
}

func (f Filter) levelOK(level string) bool {
	want := strings.ToLower(strings.TrimSpace(f.MinLevel))
	if want == "" {
		return true
	}
	floor, ok := levelRank[want]
	if !ok {
		return true
	}
	got, ok := levelRank[strings.ToLower(strings.TrimSpace(level))]
	return ok && got >= floor
}
