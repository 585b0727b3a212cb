package fragment

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"plansync/internal/locale"
	"plansync/internal/record"
)

var (
	partsTableClass   = regexp.MustCompile(`(?i)parts_table|rsp_parts_table|psrs_parts_table`)
	partsRowClass     = regexp.MustCompile(`(?i)parts_single_row`)
	partStatusClass   = regexp.MustCompile(`(?i)spare_part_status`)
	partMainStatus    = regexp.MustCompile(`(?i)spare_part_main_status`)
	richMissingWords  = regexp.MustCompile(`(?i)offen|fehlt|rückstand|backorder`)
	tableMissingWords = regexp.MustCompile(`(?i)offen|fehlt|rückstand|backorder|nicht.*gelief`)
	dataPartPattern   = regexp.MustCompile(`(?i)data-part(?:no|_no)?="([^"]+)"`)
	statusButton      = regexp.MustCompile(`(?i)rsvgp_status_dropdown[^>]*>\s*([^<]+?)\s*<`)
)

// Checkbox data-action names on a parts row.
const (
	flagToOrder      = "order_parts"
	flagOrdered      = "bestellt"
	flagDelivered    = "delivered"
	flagBackorder    = "ruckstand"
	flagMandatory    = "mandatory"
	flagPriceChecked = "price_checked"
)

// partColumns holds resolved header indices; -1 means absent.
type partColumns struct {
	desc, partNo, leadNo, priceEach, qty, total, date, orderNo int
}

func resolvePartColumns(headers []string) partColumns {
	return partColumns{
		desc:      headerIndex(headers, []string{"teil"}, []string{"teile nr"}),
		partNo:    headerIndex(headers, []string{"teile", "nr"}, nil),
		leadNo:    headerIndex(headers, []string{"leit", "nr"}, nil),
		priceEach: headerIndex(headers, []string{"e.preis"}, nil),
		qty:       headerIndex(headers, []string{"menge"}, nil),
		total:     headerIndex(headers, []string{"g.preis"}, nil),
		date:      headerIndex(headers, []string{"datum"}, nil),
		orderNo:   headerIndex(headers, []string{"a.nummer"}, nil),
	}
}

// headerIndex returns the first header containing every include token and
// none of the exclude tokens, compared after Unicode case folding.
func headerIndex(headers []string, include, exclude []string) int {
	fold := cases.Fold()
	for i, h := range headers {
		h = fold.String(h)
		ok := true
		for _, tok := range include {
			if !strings.Contains(h, fold.String(tok)) {
				ok = false
				break
			}
		}
		for _, tok := range exclude {
			if ok && strings.Contains(h, fold.String(tok)) {
				ok = false
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

// partRow is the strategy-independent view of one parts_single_row.
type partRow struct {
	cells      []string
	partNoAttr string
	dateText   string
	dateTitles []string
	flags      map[string]bool
	icon       string
	attrs      map[string]string
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func buildRichPart(cols partColumns, headers []string, row partRow) record.Part {
	partNo := strings.TrimSpace(row.partNoAttr)
	if partNo == "" {
		partNo = cellAt(row.cells, cols.partNo)
	}
	orderDate, deliveryDate := parsePartDates(row.dateText, row.dateTitles)
	statusCode := locale.CleanText(row.attrs["data-status"])
	statusText := row.icon
	if statusText == "" {
		statusText = statusCode
	}

	p := record.Part{
		PartNo:       partNo,
		Description:  cellAt(row.cells, cols.desc),
		LeadNo:       cellAt(row.cells, cols.leadNo),
		OrderNo:      cellAt(row.cells, cols.orderNo),
		RowID:        row.attrs["data-id"],
		PartID:       row.attrs["data-partid"],
		Qty:          locale.DecimalPtr(cellAt(row.cells, cols.qty)),
		PriceEach:    locale.ParseAmount(cellAt(row.cells, cols.priceEach)),
		PriceTotal:   locale.ParseAmount(cellAt(row.cells, cols.total)),
		Status:       statusText,
		StatusCode:   statusCode,
		StatusIcon:   row.icon,
		OrderDate:    orderDate,
		DeliveryDate: deliveryDate,
		IsToOrder:    row.flags[flagToOrder],
		IsOrdered:    row.flags[flagOrdered],
		IsDelivered:  row.flags[flagDelivered],
		IsBackorder:  row.flags[flagBackorder],
		IsMandatory:  row.flags[flagMandatory],
		PriceChecked: row.flags[flagPriceChecked],
		Raw: map[string]any{
			"headers":      headers,
			"row_attrs":    row.attrs,
			"status_flags": row.flags,
			"values":       row.cells,
		},
	}
	p.DeriveMissing(richMissingWords.MatchString(statusText))
	return p
}

// parsePartDates reads the order and delivery dates from a parts date cell.
// Span titles win over cell text; a cell such as "01.12.2025 / -" is split on
// the slash.
func parsePartDates(text string, titles []string) (orderDate, deliveryDate string) {
	norm := func(s string) string {
		d, dt := locale.ParseDate(s)
		switch {
		case d != "":
			return d
		case dt != "":
			return dt
		default:
			return s
		}
	}
	clean := func(s string) string {
		return locale.CleanText(strings.ReplaceAll(s, "Array", " "))
	}

	var fromTitles []string
	for _, t := range titles {
		fromTitles = append(fromTitles, locale.FindDates(clean(t))...)
	}
	switch {
	case len(fromTitles) >= 2:
		orderDate, deliveryDate = norm(fromTitles[0]), norm(fromTitles[1])
	case len(fromTitles) == 1:
		deliveryDate = norm(fromTitles[0])
	}

	if text == "" {
		return orderDate, deliveryDate
	}
	tokens := locale.FindDates(clean(text))
	if len(tokens) >= 2 {
		if orderDate == "" {
			orderDate = norm(tokens[0])
		}
		if deliveryDate == "" {
			deliveryDate = norm(tokens[1])
		}
		return orderDate, deliveryDate
	}
	if len(tokens) == 1 && deliveryDate == "" {
		return orderDate, norm(tokens[0])
	}

	var pieces []string
	for _, p := range strings.Split(clean(text), "/") {
		if p = strings.TrimSpace(p); p != "" {
			pieces = append(pieces, p)
		}
	}
	switch {
	case len(pieces) >= 2:
		if orderDate == "" && pieces[0] != "-" {
			orderDate = norm(pieces[0])
		}
		if deliveryDate == "" && pieces[1] != "-" {
			deliveryDate = norm(pieces[1])
		}
	case len(pieces) == 1 && deliveryDate == "" && pieces[0] != "-":
		deliveryDate = norm(pieces[0])
	}
	return orderDate, deliveryDate
}

// Column synonyms for parts rendered as plain tables.
var (
	genericPartNo   = []string{"Teilenummer", "Teile-Nr.", "Teilenr.", "Part", "col_0"}
	genericDesc     = []string{"Bezeichnung", "Beschreibung", "Description", "col_1"}
	genericQty      = []string{"Menge", "Qty", "col_2"}
	genericStatus   = []string{"Status", "col_3"}
	genericDelivery = []string{"Lieferdatum", "Geliefert", "Delivery"}
	genericETA      = []string{"ETA", "Liefertermin"}
)

func firstCell(cells map[string]string, keys []string) string {
	for _, k := range keys {
		if v := cells[k]; v != "" {
			return v
		}
	}
	return ""
}

// partsFromTables scans generic tables for rows that look like parts.
func partsFromTables(tables []Table) []record.Part {
	var parts []record.Part
	for _, t := range tables {
		for _, row := range t.Rows {
			partNo := firstCell(row.Cells, genericPartNo)
			desc := firstCell(row.Cells, genericDesc)
			if partNo == "" && desc == "" {
				continue
			}
			status := firstCell(row.Cells, genericStatus)
			raw := make(map[string]any, len(row.Cells))
			for k, v := range row.Cells {
				raw[k] = v
			}
			p := record.Part{
				PartNo:       partNo,
				Description:  desc,
				Qty:          locale.DecimalPtr(firstCell(row.Cells, genericQty)),
				Status:       status,
				DeliveryDate: locale.NormalizeDate(firstCell(row.Cells, genericDelivery)),
				ETADate:      locale.NormalizeDate(firstCell(row.Cells, genericETA)),
				Raw:          raw,
			}
			p.DeriveMissing(tableMissingWords.MatchString(status))
			parts = append(parts, p)
		}
	}
	return parts
}

// partsFromDataAttrs is the last resort: bare data-part / data-partno
// attributes anywhere in the markup.
func partsFromDataAttrs(html string) []record.Part {
	var parts []record.Part
	for _, m := range dataPartPattern.FindAllStringSubmatch(html, -1) {
		parts = append(parts, record.Part{PartNo: m[1], Raw: map[string]any{}})
	}
	return parts
}

// finishParts applies the fallback chain shared by both strategies.
func finishParts(rich []record.Part, snapshotTables func() []Table, html string) []record.Part {
	if len(rich) > 0 {
		return record.DedupeParts(rich)
	}
	if parts := partsFromTables(snapshotTables()); len(parts) > 0 {
		return record.DedupeParts(parts)
	}
	return record.DedupeParts(partsFromDataAttrs(html))
}

// MissingKeyword reports whether a free-text status mentions a missing or
// outstanding part.
func MissingKeyword(status string) bool {
	return tableMissingWords.MatchString(status)
}

func statusFromButton(html string) string {
	if m := statusButton.FindStringSubmatch(html); m != nil {
		return locale.CleanText(m[1])
	}
	return ""
}
