package remote

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"plansync/internal/envelope"
	"plansync/internal/fragment"
	"plansync/internal/locale"
	"plansync/internal/record"
)

// maxPartsEndpoints bounds how many JS-discovered endpoints are probed.
const maxPartsEndpoints = 10

var partsEndpointParams = []string{"projectID", "ID", "id"}

// PartsResult is what the parts sub-pipeline learned about one order.
type PartsResult struct {
	Status string
	Parts  []record.Part
	Meta   map[string]string
	// Tab is the parts tab payload, reused as the "parts" section.
	Tab      View
	Warnings []string
}

// PartsDeep reads the parts tab and then probes parts endpoints referenced by
// the tab's JavaScript for a more detailed list. The first endpoint yielding
// rows replaces the tab's own list.
func (c *Client) PartsDeep(ctx context.Context, p fragment.Parser, id int64) (PartsResult, error) {
	tab, err := c.PartsTab(ctx, id)
	if err != nil {
		return PartsResult{}, err
	}
	res := PartsResult{Tab: tab}

	html := tab.String("html")
	res.Status = p.PartsStatus(html)
	if html != "" {
		parts, meta, err := p.Parts(html)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("parts tab: %v", err))
		}
		res.Parts, res.Meta = parts, meta
	}

	js := tab.String("js")
	if js == "" {
		js = tab.String("functions")
	}
	var preferred []string
	for _, ep := range fragment.Endpoints(js) {
		if strings.Contains(ep, "parts") {
			preferred = append(preferred, ep)
		}
	}
	if len(preferred) > maxPartsEndpoints {
		preferred = preferred[:maxPartsEndpoints]
	}

	for _, ep := range preferred {
		for _, key := range partsEndpointParams {
			if ctx.Err() != nil {
				return res, nil
			}
			resp, err := c.session.Do(ctx, Request{
				Method: http.MethodGet,
				Path:   ep,
				Params: url.Values{key: {idString(id)}},
			})
			if err != nil {
				continue
			}
			parts, meta := partsFromEndpoint(p, resp)
			if len(parts) == 0 {
				continue
			}
			res.Parts = record.DedupeParts(parts)
			if len(meta) > 0 {
				res.Meta = meta
			}
			return res, nil
		}
	}
	return res, nil
}

// partsFromEndpoint accepts a JSON html wrapper, a JSON data row list, a
// semicolon CSV export, or bare markup.
func partsFromEndpoint(p fragment.Parser, resp *Response) ([]record.Part, map[string]string) {
	body := resp.Body
	ct := strings.ToLower(resp.ContentType)

	if isJSONContent(ct, body) {
		if obj := envelope.Object(body); obj != nil {
			if html, ok := obj["html"].(string); ok {
				if parts, meta, err := p.Parts(html); err == nil && len(parts) > 0 {
					return parts, meta
				}
			}
			if rows, ok := obj["data"].([]any); ok {
				if parts := partsFromDataRows(rows); len(parts) > 0 {
					return parts, nil
				}
			}
		}
	}

	head := body
	if len(head) > 200 {
		head = head[:200]
	}
	if strings.Contains(ct, "text/csv") || (strings.Contains(body, ";") && strings.Contains(head, "Teile")) {
		if parts := PartsFromCSV(body); len(parts) > 0 {
			return parts, nil
		}
	}

	if envelope.LooksLikeHTML(body) {
		if parts, meta, err := p.Parts(body); err == nil && len(parts) > 0 {
			return parts, meta
		}
	}
	return nil, nil
}

func partsFromDataRows(rows []any) []record.Part {
	var parts []record.Part
	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			continue
		}
		status := firstString(row, "status")
		p := record.Part{
			PartNo:       firstString(row, "part_no", "number"),
			Description:  firstString(row, "desc", "description"),
			Qty:          numberPtr(row["qty"]),
			Status:       status,
			DeliveryDate: locale.NormalizeDate(firstString(row, "delivery_date")),
			ETADate:      locale.NormalizeDate(firstString(row, "eta_date")),
			Raw:          row,
		}
		p.DeriveMissing(fragment.MissingKeyword(status))
		parts = append(parts, p)
	}
	return parts
}

// PartsFromCSV parses a semicolon separated parts export with a header row.
func PartsFromCSV(body string) []record.Part {
	r := csv.NewReader(strings.NewReader(body))
	r.Comma = ';'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var parts []record.Part
	for {
		cols, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(cols) {
				row[h] = strings.TrimSpace(cols[i])
			}
		}
		raw := make(map[string]any, len(row))
		for k, v := range row {
			raw[k] = v
		}
		status := firstOf(row, "Status")
		p := record.Part{
			PartNo:       firstOf(row, "Teilenummer", "PartNo"),
			Description:  firstOf(row, "Bezeichnung", "Description"),
			Qty:          locale.DecimalPtr(firstOf(row, "Menge", "Qty")),
			Status:       status,
			DeliveryDate: locale.NormalizeDate(firstOf(row, "Lieferdatum")),
			ETADate:      locale.NormalizeDate(firstOf(row, "ETA")),
			Raw:          raw,
		}
		if p.PartNo == "" && p.Description == "" {
			continue
		}
		p.DeriveMissing(fragment.MissingKeyword(status))
		parts = append(parts, p)
	}
	return parts
}

func firstOf(row map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := row[k]; v != "" {
			return v
		}
	}
	return ""
}

func firstString(row map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := row[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func numberPtr(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if f, ok := locale.ParseDecimal(t); ok {
			return &f
		}
	}
	return nil
}
