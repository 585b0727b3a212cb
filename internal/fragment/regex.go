package fragment

import (
	stdhtml "html"
	"regexp"
	"strings"

	"plansync/internal/locale"
	"plansync/internal/record"
)

// labelWindow bounds how far past a </label> the regex strategy looks for the
// associated control.
const labelWindow = 600

var (
	labelPattern     = regexp.MustCompile(`(?is)<label[^>]*>(.*?)</label>`)
	nextLabel        = regexp.MustCompile(`(?i)<label\b`)
	inputValue       = regexp.MustCompile(`(?i)<input[^>]*value="([^"]*)"`)
	selectedOption   = regexp.MustCompile(`(?is)<select[^>]*>.*?<option[^>]*selected[^>]*>(.*?)</option>`)
	textareaPattern  = regexp.MustCompile(`(?is)<textarea[^>]*>(.*?)</textarea>`)
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
	tablePattern     = regexp.MustCompile(`(?is)<table\b[^>]*>.*?</table>`)
	tableOpenPattern = regexp.MustCompile(`(?is)^<table\b[^>]*>`)
	thPattern        = regexp.MustCompile(`(?is)<th\b[^>]*>(.*?)</th>`)
	trPattern        = regexp.MustCompile(`(?is)<tr\b([^>]*)>(.*?)</tr>`)
	tdPattern        = regexp.MustCompile(`(?is)<td\b([^>]*)>(.*?)</td>`)
	anchorPattern    = regexp.MustCompile(`(?is)<a[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	imagePattern     = regexp.MustCompile(`(?i)<img[^>]+src="([^"]+)"[^>]*>`)
	altPattern       = regexp.MustCompile(`(?i)\balt="([^"]*)"`)
	dataAttrPattern  = regexp.MustCompile(`(data-[a-zA-Z0-9_-]+)="([^"]*)"`)
	dataTagPattern   = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)\b([^>]*\bdata-[^>]*)>`)
	idAttrPattern    = regexp.MustCompile(`\bid="([^"]*)"`)
	classAttrPattern = regexp.MustCompile(`\bclass="([^"]*)"`)
	partsTableOpen   = regexp.MustCompile(`(?i)<table[^>]*class="[^"]*(?:parts_table|rsp_parts_table|psrs_parts_table)[^"]*"[^>]*>`)
	tableClose       = regexp.MustCompile(`(?i)</table\s*>`)
	partsRowPattern  = regexp.MustCompile(`(?is)<tr\b([^>]*class="[^"]*parts_single_row[^"]*"[^>]*)>(.*?)</tr>`)
	inputTagPattern  = regexp.MustCompile(`(?i)<input[^>]+>`)
	actionPattern    = regexp.MustCompile(`data-action="([^"]+)"`)
	checkedPattern   = regexp.MustCompile(`(?i)\bchecked\b`)
	prtNumberPattern = regexp.MustCompile(`data-prtnumber="([^"]+)"`)
	titlePattern     = regexp.MustCompile(`title="([^"]+)"`)
	mainStatusIcon   = regexp.MustCompile(`(?is)class="[^"]*spare_part_main_status[^"]*"[^>]*>.*?<i[^>]*title="([^"]+)"`)
	statusSelect     = regexp.MustCompile(`(?is)<select[^>]*name="[^"]*status[^"]*"[^>]*>.*?<option[^>]*selected[^>]*>(.*?)</option>`)
)

// RegexParser extracts content with bounded patterns and never builds a DOM.
type RegexParser struct{}

// NewRegexParser returns the regex strategy.
func NewRegexParser() *RegexParser { return &RegexParser{} }

// Name implements Parser.
func (p *RegexParser) Name() string { return StrategyRegex }

func stripTags(s string) string {
	return locale.CleanText(stdhtml.UnescapeString(tagPattern.ReplaceAllString(s, " ")))
}

// Snapshot implements Parser.
func (p *RegexParser) Snapshot(markup string) (snap Snapshot, err error) {
	defer guard(StrategyRegex, "snapshot", &err)
	if fields := regexFields(markup); len(fields) > 0 {
		snap.Fields = fields
	}
	snap.Tables = regexTables(markup)
	for _, m := range anchorPattern.FindAllStringSubmatch(markup, -1) {
		snap.Links = append(snap.Links, Link{Href: stdhtml.UnescapeString(m[1]), Text: stripTags(m[2])})
	}
	for _, m := range imagePattern.FindAllStringSubmatch(markup, -1) {
		img := Image{Src: stdhtml.UnescapeString(m[1])}
		if alt := altPattern.FindStringSubmatch(m[0]); alt != nil {
			img.Alt = locale.CleanText(stdhtml.UnescapeString(alt[1]))
		}
		snap.Images = append(snap.Images, img)
	}
	snap.BackgroundImages = backgroundImages(markup)
	for _, m := range dataTagPattern.FindAllStringSubmatch(markup, -1) {
		attrs := regexDataAttrs(m[2])
		if len(attrs) == 0 {
			continue
		}
		entry := DataElement{Tag: strings.ToLower(m[1]), Attrs: attrs}
		if id := idAttrPattern.FindStringSubmatch(m[2]); id != nil {
			entry.ID = id[1]
		}
		if class := classAttrPattern.FindStringSubmatch(m[2]); class != nil {
			entry.Class = strings.Join(strings.Fields(class[1]), " ")
		}
		snap.DataAttrs = append(snap.DataAttrs, entry)
		if len(snap.DataAttrs) >= MaxDataElements {
			break
		}
	}
	return snap, nil
}

// Fields implements Parser.
func (p *RegexParser) Fields(markup string) (fields map[string]string, err error) {
	defer guard(StrategyRegex, "fields", &err)
	return regexFields(markup), nil
}

// regexFields pairs each label with the first input value, selected option,
// or textarea found within labelWindow bytes after it and before the next
// label.
func regexFields(markup string) map[string]string {
	fields := map[string]string{}
	for _, loc := range labelPattern.FindAllStringSubmatchIndex(markup, -1) {
		label := stripTags(markup[loc[2]:loc[3]])
		if label == "" {
			continue
		}
		if _, seen := fields[label]; seen {
			continue
		}
		end := loc[1] + labelWindow
		if end > len(markup) {
			end = len(markup)
		}
		after := markup[loc[1]:end]
		// The window never extends into the next label's control.
		if next := nextLabel.FindStringIndex(after); next != nil {
			after = after[:next[0]]
		}

		var value string
		if m := inputValue.FindStringSubmatch(after); m != nil {
			value = stdhtml.UnescapeString(m[1])
		}
		if value == "" {
			if m := selectedOption.FindStringSubmatch(after); m != nil {
				value = stripTags(m[1])
			}
		}
		if value == "" {
			if m := textareaPattern.FindStringSubmatch(after); m != nil {
				value = stripTags(m[1])
			}
		}
		addField(fields, label, value)
	}
	return fields
}

func regexDataAttrs(fragment string) map[string]string {
	var out map[string]string
	for _, m := range dataAttrPattern.FindAllStringSubmatch(fragment, -1) {
		if out == nil {
			out = map[string]string{}
		}
		out[m[1]] = locale.CleanText(stdhtml.UnescapeString(m[2]))
	}
	return out
}

func regexHeaders(markup string) []string {
	var headers []string
	for _, m := range thPattern.FindAllStringSubmatch(markup, -1) {
		headers = append(headers, stripTags(m[1]))
	}
	return headers
}

func regexTables(markup string) []Table {
	var tables []Table
	for _, tableHTML := range tablePattern.FindAllString(markup, -1) {
		headers := regexHeaders(tableHTML)
		var rows []Row
		for _, tr := range trPattern.FindAllStringSubmatch(tableHTML, -1) {
			tds := tdPattern.FindAllStringSubmatch(tr[2], -1)
			if len(tds) == 0 {
				continue
			}
			values := make([]string, 0, len(tds))
			for _, td := range tds {
				values = append(values, stripTags(td[2]))
			}
			rows = append(rows, buildRow(headers, values, regexDataAttrs(tr[1])))
		}
		if len(rows) == 0 {
			continue
		}
		t := Table{Headers: headers, Rows: rows}
		if open := tableOpenPattern.FindString(tableHTML); open != "" {
			t.Attrs = regexDataAttrs(open)
		}
		tables = append(tables, t)
	}
	return tables
}

// partsTableSection returns the opening tag of the parts table and the markup
// from there to its closing tag, so headers and rows of other tables on the
// page are not mixed in.
func partsTableSection(markup string) (open, table string) {
	loc := partsTableOpen.FindStringIndex(markup)
	if loc == nil {
		return "", ""
	}
	open = markup[loc[0]:loc[1]]
	table = markup[loc[0]:]
	if end := tableClose.FindStringIndex(table); end != nil {
		table = table[:end[1]]
	}
	return open, table
}

// Parts implements Parser.
func (p *RegexParser) Parts(markup string) (parts []record.Part, meta map[string]string, err error) {
	defer guard(StrategyRegex, "parts", &err)

	var rich []record.Part
	if open, table := partsTableSection(markup); open != "" {
		meta = regexDataAttrs(open)
		headers := regexHeaders(table)
		cols := resolvePartColumns(headers)
		for _, tr := range partsRowPattern.FindAllStringSubmatch(table, -1) {
			tds := tdPattern.FindAllStringSubmatch(tr[2], -1)
			if len(tds) == 0 {
				continue
			}
			row := partRow{
				flags: map[string]bool{},
				attrs: regexDataAttrs(tr[1]),
			}
			if row.attrs == nil {
				row.attrs = map[string]string{}
			}
			for _, td := range tds {
				row.cells = append(row.cells, stripTags(td[2]))
			}
			if cols.partNo >= 0 && cols.partNo < len(tds) {
				cell := tds[cols.partNo][1] + tds[cols.partNo][2]
				if m := prtNumberPattern.FindStringSubmatch(cell); m != nil {
					row.partNoAttr = stdhtml.UnescapeString(m[1])
				}
			}
			if cols.date >= 0 && cols.date < len(tds) {
				row.dateText = stripTags(tds[cols.date][2])
				for _, m := range titlePattern.FindAllStringSubmatch(tds[cols.date][2], -1) {
					row.dateTitles = append(row.dateTitles, stdhtml.UnescapeString(m[1]))
				}
			}
			for _, input := range inputTagPattern.FindAllString(tr[2], -1) {
				class := classAttrPattern.FindStringSubmatch(input)
				if class == nil || !partStatusClass.MatchString(class[1]) {
					continue
				}
				if action := actionPattern.FindStringSubmatch(input); action != nil {
					row.flags[strings.TrimSpace(action[1])] = checkedPattern.MatchString(input)
				}
			}
			if m := mainStatusIcon.FindStringSubmatch(tr[2]); m != nil {
				row.icon = locale.CleanText(stdhtml.UnescapeString(m[1]))
			}
			rich = append(rich, buildRichPart(cols, headers, row))
		}
	}

	parts = finishParts(rich, func() []Table { return regexTables(markup) }, markup)
	return parts, meta, nil
}

// PartsStatus implements Parser.
func (p *RegexParser) PartsStatus(markup string) string {
	if s := statusFromButton(markup); s != "" {
		return s
	}
	if m := statusSelect.FindStringSubmatch(markup); m != nil {
		return stripTags(m[1])
	}
	return ""
}
