package fragment

import (
	"fmt"
	"strings"
	"sync"

	"plansync/internal/record"
	"plansync/internal/services"
)

// Strategy names accepted by Select.
const (
	StrategyAuto  = "auto"
	StrategyTree  = "tree"
	StrategyRegex = "regex"
)

// Parser extracts structured content from one HTML fragment. Implementations
// never panic; a failed parse returns an empty result and an error wrapping
// services.ErrParse.
type Parser interface {
	// Name identifies the strategy in logs.
	Name() string
	// Snapshot extracts fields, tables, links, images, and data attributes.
	Snapshot(html string) (Snapshot, error)
	// Fields extracts label/value pairs. The first occurrence of a label wins.
	Fields(html string) (map[string]string, error)
	// Parts extracts the parts list and the parts table data attributes
	// (vin, make, plate, order number).
	Parts(html string) ([]record.Part, map[string]string, error)
	// PartsStatus returns the human parts status shown on the parts tab.
	PartsStatus(html string) string
}

var (
	treeProbeOnce sync.Once
	treeUsable    bool
)

const probeHTML = `<div class="field"><label for="p">probe</label><input id="p" value="ok"></div>`

// TreeAvailable reports whether the tree strategy parses a known fragment
// correctly. The probe runs once per process.
func TreeAvailable() bool {
	treeProbeOnce.Do(func() {
		fields, err := NewTreeParser().Fields(probeHTML)
		treeUsable = err == nil && fields["probe"] == "ok"
	})
	return treeUsable
}

// Select returns the parser for strategy. "auto" prefers the tree strategy
// and falls back to regex when the probe fails.
func Select(strategy string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyAuto:
		if TreeAvailable() {
			return NewTreeParser(), nil
		}
		return NewRegexParser(), nil
	case StrategyTree:
		return NewTreeParser(), nil
	case StrategyRegex:
		return NewRegexParser(), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "fragment", "select", fmt.Sprintf("unknown parser strategy %q", strategy), nil)
	}
}
