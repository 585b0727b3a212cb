// Package record defines the canonical schema that every remote response
// shape is mapped into before it reaches the store.
package record

import "time"

// Order is one repair job synchronized from the remote planner.
type Order struct {
	ID            int64
	ShortName     string
	Plate         string
	Person        string
	Phone         string
	Email         string
	Damage        string
	ProjectStatus string
	StationID     *int64
	StationState  string
	ShopDate      string
	RepairDate    string
	FinishDate    string
	PlannedDate   string
	PartsStatus   string
	MissingParts  bool
	EstKaro       *float64
	EstLack       *float64
	EstMech       *float64
	// Fields holds every parsed label/value pair, including labels without a
	// dedicated column.
	Fields      map[string]string
	VehicleInfo map[string]string
	SyncedAt    time.Time
}

// Part is one line item of an order's parts list.
type Part struct {
	PartNo       string
	Description  string
	LeadNo       string
	OrderNo      string
	RowID        string
	PartID       string
	Qty          *float64
	PriceEach    *float64
	PriceTotal   *float64
	Status       string
	StatusCode   string
	StatusIcon   string
	OrderDate    string
	DeliveryDate string
	ETADate      string
	IsToOrder    bool
	IsOrdered    bool
	IsDelivered  bool
	IsBackorder  bool
	IsMandatory  bool
	PriceChecked bool
	IsMissing    bool
	// Raw is the parsed source row kept for audit.
	Raw map[string]any
}

// Key returns the natural key used for deduplication within one order.
func (p Part) Key() [2]string {
	return [2]string{p.PartNo, p.Description}
}

// Section is a named raw and parsed snapshot of one remote sub-view.
type Section struct {
	Name        string
	ContentType string
	Raw         string
	// Parsed is the JSON encoding of the unwrapped envelope.
	Parsed    []byte
	FetchedAt time.Time
}

// Employee is a global directory entry discovered while parsing order views.
type Employee struct {
	ID   int64
	Name string
}

// Record is the unit of persistence: everything one pipeline run produced for
// a single order.
type Record struct {
	Order Order
	Parts []Part
	// PartsFetched reports whether the parts sub-pipeline ran. Stored parts
	// are replaced only when it did.
	PartsFetched bool
	Sections     []Section
	// SectionsFetched reports whether the section snapshot ran.
	SectionsFetched bool
	Employees       []Employee
}

// DeriveMissing applies the missing-part heuristic: backorder, or requested
// but undelivered, or a missing keyword in the status text. A delivered part
// that is not backordered is never missing.
func (p *Part) DeriveMissing(keywordMatch bool) {
	missing := p.IsBackorder || ((p.IsToOrder || p.IsOrdered) && !p.IsDelivered) || keywordMatch
	if p.IsDelivered && !p.IsBackorder {
		missing = false
	}
	p.IsMissing = missing
}

// DedupeParts keeps the first part for each (part number, description) pair.
func DedupeParts(parts []Part) []Part {
	if len(parts) == 0 {
		return parts
	}
	seen := make(map[[2]string]struct{}, len(parts))
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		key := p.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
