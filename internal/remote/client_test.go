package remote_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"plansync/internal/fragment"
	"plansync/internal/remote"
	"plansync/internal/services"
)

// fakeSession answers by the "m" parameter, or by path when m is absent.
type fakeSession struct {
	mu        sync.Mutex
	responses map[string]*remote.Response
	calls     []remote.Request
}

func (f *fakeSession) Do(_ context.Context, req remote.Request) (*remote.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	key := req.Params.Get("m")
	if key == "" {
		key = req.Path
	}
	for k := range req.Params {
		if alt, ok := f.responses[key+"|"+k]; ok {
			return alt, nil
		}
	}
	resp, ok := f.responses[key]
	if !ok {
		return &remote.Response{Status: http.StatusNotFound}, &remote.FetchError{Op: key, Status: http.StatusNotFound}
	}
	return resp, nil
}

func (f *fakeSession) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Params.Get("m"))
	}
	return out
}

func jsonResp(body string) *remote.Response {
	return &remote.Response{Status: http.StatusOK, ContentType: "application/json", Body: body}
}

func TestProjectStations(t *testing.T) {
	session := &fakeSession{responses: map[string]*remote.Response{
		"resourceplanner_get_project_stations": jsonResp(`{"0":{"ID":"5","short_name":"HH-1","station":"2@active"},"execution_time":0.2}`),
	}}
	projects, err := remote.NewClient(session, 12565).ProjectStations(context.Background())
	if err != nil {
		t.Fatalf("ProjectStations: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != 5 || projects[0].Station != "2@active" {
		t.Fatalf("unexpected projects %+v", projects)
	}
	if session.calls[0].Method != http.MethodPost || session.calls[0].Params.Get("filterID") != "" {
		t.Fatalf("unexpected request %+v", session.calls[0])
	}
}

func TestProjectStationsNonJSONIsShapeError(t *testing.T) {
	session := &fakeSession{responses: map[string]*remote.Response{
		"resourceplanner_get_project_stations": {Status: http.StatusOK, ContentType: "text/html", Body: "<html>login</html>"},
	}}
	_, err := remote.NewClient(session, 1).ProjectStations(context.Background())
	if !errors.Is(err, services.ErrShape) {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestViewsReadCenterContent(t *testing.T) {
	session := &fakeSession{responses: map[string]*remote.Response{
		"visual_forms_plain":               jsonResp(`{"center":{"content":"<form></form>"}}`),
		"resourceplanner_shop_view_single": jsonResp(`[]`),
	}}
	client := remote.NewClient(session, 777)
	view, err := client.VisualFormsPlain(context.Background(), 9)
	if err != nil {
		t.Fatalf("VisualFormsPlain: %v", err)
	}
	if view.CenterContent() != "<form></form>" {
		t.Fatalf("unexpected center content %q", view.CenterContent())
	}
	req := session.calls[0]
	if req.Params.Get("tableID") != "777" || req.Params.Get("dataID") != "9" || req.Params.Get("submode") != "update" {
		t.Fatalf("unexpected form params %v", req.Params)
	}
	if _, err := client.ShopViewSingle(context.Background(), 9); !errors.Is(err, services.ErrShape) {
		t.Fatalf("expected shape error for non-object view, got %v", err)
	}
}

const tabHTML = `<button class="rsvgp_status_dropdown">Teile bestellt</button>
<table class="rsp_parts_table" data-vin="V1"><tr><th>Teil</th><th>Teile Nr.</th></tr>
<tr class="parts_single_row"><td>Tür</td><td>T-1</td></tr></table>`

func TestPartsDeepUsesTabWhenNoEndpointAnswers(t *testing.T) {
	session := &fakeSession{responses: map[string]*remote.Response{
		"resourceplanner_shop_view_get_parts": jsonResp(`{"html":` + quote(tabHTML) + `,"js":"x('/do?m=parts_export_csv')"}`),
	}}
	res, err := remote.NewClient(session, 1).PartsDeep(context.Background(), fragment.NewRegexParser(), 3)
	if err != nil {
		t.Fatalf("PartsDeep: %v", err)
	}
	if res.Status != "Teile bestellt" {
		t.Fatalf("unexpected status %q", res.Status)
	}
	if len(res.Parts) != 1 || res.Parts[0].PartNo != "T-1" || res.Meta["data-vin"] != "V1" {
		t.Fatalf("unexpected tab parts %+v meta %v", res.Parts, res.Meta)
	}
	if res.Tab.Body == "" {
		t.Fatal("tab payload must be kept for reuse")
	}
	// Each of the three id parameter spellings is tried once.
	if got := len(session.calls); got != 4 {
		t.Fatalf("expected 4 calls, got %d", got)
	}
}

func TestPartsDeepCSVEndpoint(t *testing.T) {
	csvBody := "Teilenummer;Bezeichnung;Menge;Status;Lieferdatum\n" +
		"A-1;Haube;1;nicht geliefert;03.02.2026\n" +
		"A-2;Grill;2,5;geliefert;\n"
	session := &fakeSession{responses: map[string]*remote.Response{
		"resourceplanner_shop_view_get_parts": jsonResp(`{"html":"","js":"load('/do?m=parts_export')"}`),
		"/do?m=parts_export|ID":               {Status: http.StatusOK, ContentType: "text/csv", Body: csvBody},
	}}
	res, err := remote.NewClient(session, 1).PartsDeep(context.Background(), fragment.NewTreeParser(), 3)
	if err != nil {
		t.Fatalf("PartsDeep: %v", err)
	}
	if len(res.Parts) != 2 {
		t.Fatalf("expected csv parts, got %+v", res.Parts)
	}
	if !res.Parts[0].IsMissing || res.Parts[0].DeliveryDate != "2026-02-03" {
		t.Fatalf("unexpected first part %+v", res.Parts[0])
	}
	if res.Parts[1].IsMissing || res.Parts[1].Qty == nil || *res.Parts[1].Qty != 2.5 {
		t.Fatalf("unexpected second part %+v", res.Parts[1])
	}
}

func TestPartsDeepDataRows(t *testing.T) {
	session := &fakeSession{responses: map[string]*remote.Response{
		"resourceplanner_shop_view_get_parts": jsonResp(`{"html":"","functions":"go('/do?m=parts_availability')"}`),
		"/do?m=parts_availability|projectID":  jsonResp(`{"data":[{"number":"N-1","description":"Lampe","qty":3,"status":"Rückstand","eta_date":"10.03.2026"},"noise"]}`),
	}}
	res, err := remote.NewClient(session, 1).PartsDeep(context.Background(), fragment.NewRegexParser(), 3)
	if err != nil {
		t.Fatalf("PartsDeep: %v", err)
	}
	if len(res.Parts) != 1 {
		t.Fatalf("expected one data row part, got %+v", res.Parts)
	}
	p := res.Parts[0]
	if p.PartNo != "N-1" || p.Description != "Lampe" || p.Qty == nil || *p.Qty != 3 || p.ETADate != "2026-03-10" || !p.IsMissing {
		t.Fatalf("unexpected part %+v", p)
	}
}

func TestPartsDeepTabFailure(t *testing.T) {
	session := &fakeSession{responses: map[string]*remote.Response{}}
	_, err := remote.NewClient(session, 1).PartsDeep(context.Background(), fragment.NewRegexParser(), 3)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func quote(s string) string {
	b := []byte{'"'}
	for _, r := range s {
		switch r {
		case '"':
			b = append(b, '\\', '"')
		case '\n':
			b = append(b, '\\', 'n')
		default:
			b = append(b, string(r)...)
		}
	}
	return string(append(b, '"'))
}
