package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"plansync/internal/locale"
)

// SectionSpec is one named view fetched for a full snapshot.
type SectionSpec struct {
	Name   string
	Method string
	Params url.Values
	// Binary marks image and document listings, skipped unless requested.
	Binary bool
}

// RawSection is a fetched but not yet unwrapped section body.
type RawSection struct {
	Name        string
	ContentType string
	Body        string
}

var shopViewTabs = []struct {
	name   string
	binary bool
}{
	{"damaged_areas", false},
	{"details", false},
	{"documents", true},
	{"images", true},
	{"invoice", false},
	{"parts", false},
	{"planung", false},
	{"projects", false},
	{"rental_car", false},
	{"setting", false},
	{"stamped_timings", false},
	{"stats", false},
	{"todo_list", false},
	{"work", false},
	{"zusammenfassung", false},
}

// tabMethod maps section names onto their endpoint when it does not follow
// the resourceplanner_shop_view_get_<name> convention.
var tabMethod = map[string]string{
	"damaged_areas": "resourceplanner_shop_view_get_damagedareas",
}

// SectionPlan lists the views fetched for a full snapshot of one order.
// The distribution and rental car data views need a resolvable shop date.
func SectionPlan(id int64, formTableID int, shopDate string) []SectionSpec {
	pid := idString(id)
	plan := []SectionSpec{
		{Name: "shop_view_single", Method: http.MethodGet, Params: shopViewSingleParams(id)},
		{Name: "visual_forms_plain", Method: http.MethodPost, Params: visualFormsParams(id, formTableID)},
		{Name: "shop_view", Method: http.MethodGet, Params: url.Values{"m": {"resourceplanner_get_shop_view"}, "get_fields": {"false"}, "ID": {pid}}},
	}
	for _, tab := range shopViewTabs {
		m, ok := tabMethod[tab.name]
		if !ok {
			m = "resourceplanner_shop_view_get_" + tab.name
		}
		plan = append(plan, SectionSpec{
			Name:   tab.name,
			Method: http.MethodGet,
			Params: url.Values{"m": {m}, "ID": {pid}},
			Binary: tab.binary,
		})
	}

	date, _ := locale.ParseDate(shopDate)
	if date == "" {
		return plan
	}
	plan = append(plan, SectionSpec{
		Name:   "distribution",
		Method: http.MethodGet,
		Params: url.Values{"m": {"resourceplanner_shop_view_get_dist_html"}, "shop_date": {date}, "projectID": {pid}},
	})
	if from, to, ok := MonthRange(date); ok {
		plan = append(plan, SectionSpec{
			Name:   "rental_car_data",
			Method: http.MethodGet,
			Params: url.Values{
				"m":             {"resourceplanner_shop_view_get_rental_car_data"},
				"booked_lei_id": {""},
				"projectID":     {pid},
				"timeshift":     {"-60"},
				"from":          {from},
				"to":            {to},
			},
		})
	}
	return plan
}

// MonthRange returns the first day of date's month and of the next month.
func MonthRange(date string) (from, to string, ok bool) {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return "", "", false
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start.Format(time.DateOnly), start.AddDate(0, 1, 0).Format(time.DateOnly), true
}

// FetchSections fetches every planned section. Views already fetched by the
// pipeline are reused from prefetched. A failed section is skipped and
// reported as a warning; it never fails the order.
func (c *Client) FetchSections(ctx context.Context, id int64, shopDate string, prefetched map[string]View, includeBinary bool) ([]RawSection, []string) {
	var (
		out      []RawSection
		warnings []string
	)
	for _, entry := range SectionPlan(id, c.formTableID, shopDate) {
		if entry.Binary && !includeBinary {
			continue
		}
		if view, ok := prefetched[entry.Name]; ok && view.Body != "" {
			out = append(out, RawSection{Name: entry.Name, ContentType: "application/json", Body: view.Body})
			continue
		}
		if ctx.Err() != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", entry.Name, ctx.Err()))
			break
		}
		req := Request{Method: entry.Method, Path: doPath, Params: entry.Params}
		if entry.Method == http.MethodPost {
			req.Form = url.Values{}
		}
		resp, err := c.session.Do(ctx, req)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", entry.Name, err))
			continue
		}
		out = append(out, RawSection{Name: entry.Name, ContentType: resp.ContentType, Body: resp.Body})
	}
	return out, warnings
}
