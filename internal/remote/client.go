package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"plansync/internal/envelope"
	"plansync/internal/record"
	"plansync/internal/services"
)

const (
	doPath             = "/do"
	projectStationsM   = "resourceplanner_get_project_stations"
	shopViewSingleM    = "resourceplanner_shop_view_single"
	visualFormsPlainM  = "visual_forms_plain"
	partsTabM          = "resourceplanner_shop_view_get_parts"
	singleProjectClass = "resourceplanner_single_project_wrapper"
)

// View is a JSON wrapper returned by a record-level view endpoint.
type View struct {
	ContentType string
	Body        string
	Object      map[string]any
}

// CenterContent returns the view's main HTML.
func (v View) CenterContent() string {
	return envelope.CenterContent(v.Object)
}

// String returns a top-level string member, or "".
func (v View) String(key string) string {
	s, _ := v.Object[key].(string)
	return s
}

// Client issues the record-level calls over one Session.
type Client struct {
	session     Session
	formTableID int
}

// NewClient wraps session. formTableID selects the visual_forms_plain table.
func NewClient(session Session, formTableID int) *Client {
	return &Client{session: session, formTableID: formTableID}
}

// Session returns the underlying session.
func (c *Client) Session() Session { return c.session }

// ProjectStations enumerates the remote projects. A non-JSON reply usually
// means the session is not logged in.
func (c *Client) ProjectStations(ctx context.Context) ([]record.Project, error) {
	resp, err := c.session.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   doPath,
		Params: url.Values{"m": {projectStationsM}, "filterID": {""}},
		Form:   url.Values{},
	})
	if err != nil {
		return nil, err
	}
	payload, ok := decodeJSON(resp.Body)
	if !ok {
		return nil, services.Wrap(services.ErrShape, "remote", projectStationsM, "non-JSON response (session not logged in?)", nil)
	}
	return record.ParseProjects(payload), nil
}

// ShopViewSingle fetches the single shop view of a project.
func (c *Client) ShopViewSingle(ctx context.Context, id int64) (View, error) {
	return c.view(ctx, Request{
		Method: http.MethodGet,
		Path:   doPath,
		Params: shopViewSingleParams(id),
	})
}

// VisualFormsPlain fetches the order form whose center content carries the
// label/value fields.
func (c *Client) VisualFormsPlain(ctx context.Context, id int64) (View, error) {
	return c.view(ctx, Request{
		Method: http.MethodPost,
		Path:   doPath,
		Params: visualFormsParams(id, c.formTableID),
		Form:   url.Values{},
	})
}

// PartsTab fetches the parts tab.
func (c *Client) PartsTab(ctx context.Context, id int64) (View, error) {
	return c.view(ctx, Request{
		Method: http.MethodGet,
		Path:   doPath,
		Params: url.Values{"m": {partsTabM}, "ID": {idString(id)}},
	})
}

func (c *Client) view(ctx context.Context, req Request) (View, error) {
	resp, err := c.session.Do(ctx, req)
	if err != nil {
		return View{}, err
	}
	obj := envelope.Object(resp.Body)
	if obj == nil {
		return View{}, services.Wrap(services.ErrShape, "remote", req.Params.Get("m"), "non-JSON response", nil)
	}
	return View{ContentType: resp.ContentType, Body: resp.Body, Object: obj}, nil
}

func shopViewSingleParams(id int64) url.Values {
	return url.Values{"m": {shopViewSingleM}, "svsurl": {"false"}, "ID": {idString(id)}, "opentab": {""}}
}

func visualFormsParams(id int64, tableID int) url.Values {
	return url.Values{
		"m":               {visualFormsPlainM},
		"tableID":         {strconv.Itoa(tableID)},
		"submode":         {"update"},
		"dataID":          {idString(id)},
		"call_back_class": {singleProjectClass},
		"callback":        {""},
	}
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }

func isJSONContent(contentType, body string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json") ||
		strings.HasPrefix(strings.TrimSpace(body), "{")
}

func decodeJSON(body string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, false
	}
	return v, true
}
