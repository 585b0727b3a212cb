package record

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Project is one entry of the remote project enumeration.
type Project struct {
	ID         int64
	ShortName  string
	Station    string
	EmployeeID string
	TheOrder   string
	// Raw is the entry as sent by the remote.
	Raw map[string]any
}

// HasID reports whether the entry carried a usable numeric id.
func (p Project) HasID() bool { return p.ID > 0 }

// ParseProjects extracts project entries from the enumeration payload, which
// is either a map keyed by position or a list. Scalar noise such as
// execution_time and objects carrying neither ID nor short_name are dropped.
func ParseProjects(payload any) []Project {
	var entries []any
	switch v := payload.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
		for _, k := range keys {
			entries = append(entries, v[k])
		}
	case []any:
		entries = v
	}

	var out []Project
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		_, hasID := obj["ID"]
		_, hasName := obj["short_name"]
		if !hasID && !hasName {
			continue
		}
		id, _ := intValue(obj["ID"])
		out = append(out, Project{
			ID:         id,
			ShortName:  strings.TrimSpace(stringValue(obj["short_name"])),
			Station:    strings.TrimSpace(stringValue(obj["station"])),
			EmployeeID: stringValue(obj["employeeID"]),
			TheOrder:   stringValue(obj["theorder"]),
			Raw:        obj,
		})
	}
	return out
}

// lessKey orders numeric keys numerically and everything else after them.
func lessKey(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func intValue(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), t == float64(int64(t))
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
