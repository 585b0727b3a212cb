package fragment

import (
	"fmt"
	"regexp"
	"strings"

	"plansync/internal/locale"
	"plansync/internal/services"
)

// MaxDataElements caps the number of data-* bearing elements kept per
// snapshot.
const MaxDataElements = 200

// Snapshot is the structured view of one HTML fragment.
type Snapshot struct {
	Fields           map[string]string `json:"fields,omitempty"`
	Tables           []Table           `json:"tables,omitempty"`
	Links            []Link            `json:"links,omitempty"`
	Images           []Image           `json:"images,omitempty"`
	BackgroundImages []string          `json:"background_images,omitempty"`
	DataAttrs        []DataElement     `json:"data_attrs,omitempty"`
	ParseError       string            `json:"parse_error,omitempty"`
}

// Empty reports whether nothing was extracted.
func (s Snapshot) Empty() bool {
	return len(s.Fields) == 0 && len(s.Tables) == 0 && len(s.Links) == 0 &&
		len(s.Images) == 0 && len(s.BackgroundImages) == 0 && len(s.DataAttrs) == 0
}

// Table is one <table> with its header names and data rows.
type Table struct {
	Headers []string          `json:"headers"`
	Rows    []Row             `json:"rows"`
	Attrs   map[string]string `json:"table_attrs,omitempty"`
}

// Row maps header names to cell text. When the header count does not match
// the cell count, keys are positional: col_0, col_1, ...
type Row struct {
	Cells map[string]string `json:"cells"`
	Attrs map[string]string `json:"_attrs,omitempty"`
}

// Link is an anchor with an href.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Image is an <img> with a src.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// DataElement is an element carrying data-* attributes.
type DataElement struct {
	Tag   string            `json:"tag"`
	ID    string            `json:"id,omitempty"`
	Class string            `json:"class,omitempty"`
	Attrs map[string]string `json:"attrs"`
}

var backgroundImagePattern = regexp.MustCompile(`(?i)background-image:\s*url\(["']?([^)"']+)`)

func backgroundImages(html string) []string {
	var out []string
	for _, m := range backgroundImagePattern.FindAllStringSubmatch(html, -1) {
		if src := strings.TrimSpace(m[1]); src != "" {
			out = append(out, src)
		}
	}
	return out
}

// buildRow keys cells by header when the counts line up.
func buildRow(headers, values []string, attrs map[string]string) Row {
	cells := make(map[string]string, len(values))
	if len(headers) > 0 && len(headers) == len(values) {
		for i, v := range values {
			key := headers[i]
			if key == "" {
				key = positionalKey(i)
			}
			cells[key] = v
		}
	} else {
		for i, v := range values {
			cells[positionalKey(i)] = v
		}
	}
	row := Row{Cells: cells}
	if len(attrs) > 0 {
		row.Attrs = attrs
	}
	return row
}

func positionalKey(i int) string {
	return fmt.Sprintf("col_%d", i)
}

// addField records label=value unless the label was already seen or either
// side is blank.
func addField(fields map[string]string, label, value string) {
	label = locale.CleanText(label)
	value = locale.CleanText(value)
	if label == "" || value == "" {
		return
	}
	if _, ok := fields[label]; ok {
		return
	}
	fields[label] = value
}

// guard converts a panic inside a strategy into an ErrParse warning.
func guard(strategy, operation string, err *error) {
	if r := recover(); r != nil {
		*err = services.Wrap(services.ErrParse, strategy, operation, "fragment parse failed", fmt.Errorf("%v", r))
	}
}
