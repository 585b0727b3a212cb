package fragment_test

import (
	"testing"

	"plansync/internal/fragment"
	"plansync/internal/record"
)

const partsHTML = `
<table class="table rsp_parts_table" data-vin="WVW123" data-make="VW" data-number_plate="B-AB 123" data-pnum="A-77">
<thead><tr><th>Teil</th><th>Teile Nr.</th><th>Leit Nr.</th><th>Menge</th><th>E.Preis</th><th>G.Preis</th><th>Datum</th><th>A.Nummer</th><th>Status</th></tr></thead>
<tbody>
<tr class="parts_single_row" data-id="11" data-partid="501" data-status="ordered">
<td>Stoßfänger vorne</td><td data-prtnumber="5G0807221">5G0 807 221</td><td>L1</td><td>1</td><td>1.234,56</td><td>1.234,56</td>
<td><span title="01.12.2025">x</span><span title="03.12.2025">y</span></td><td>AN-9</td>
<td class="spare_part_main_status"><i class="fa" title="Bestellt"></i>
<input type="checkbox" class="spare_part_status" data-action="order_parts" checked>
<input type="checkbox" class="spare_part_status" data-action="bestellt" checked>
<input type="checkbox" class="spare_part_status" data-action="delivered"></td></tr>
<tr class="parts_single_row" data-id="12" data-status="delivered">
<td>Spiegel</td><td>123</td><td></td><td>2</td><td>11,30</td><td>22,60</td><td>01.12.2025 / 02.12.2025</td><td></td>
<td class="spare_part_main_status"><i title="Rückstand offen"></i><input class="spare_part_status" type="checkbox" data-action="delivered" checked></td></tr>
<tr class="parts_single_row"><td>Stoßfänger vorne</td><td data-prtnumber="5G0807221">dup</td></tr>
</tbody></table>`

func findPart(parts []record.Part, partNo string) (record.Part, bool) {
	for _, p := range parts {
		if p.PartNo == partNo {
			return p, true
		}
	}
	return record.Part{}, false
}

func TestRichPartsTable(t *testing.T) {
	for _, p := range parsers() {
		t.Run(p.Name(), func(t *testing.T) {
			parts, meta, err := p.Parts(partsHTML)
			if err != nil {
				t.Fatalf("Parts returned error: %v", err)
			}
			if len(parts) != 2 {
				t.Fatalf("expected 2 deduplicated parts, got %d: %+v", len(parts), parts)
			}
			if meta["data-vin"] != "WVW123" || meta["data-pnum"] != "A-77" {
				t.Fatalf("unexpected meta %v", meta)
			}

			bumper, ok := findPart(parts, "5G0807221")
			if !ok {
				t.Fatalf("expected part number from data-prtnumber, got %+v", parts)
			}
			if bumper.Description != "Stoßfänger vorne" || bumper.LeadNo != "L1" || bumper.OrderNo != "AN-9" {
				t.Fatalf("unexpected bumper columns %+v", bumper)
			}
			if bumper.Qty == nil || *bumper.Qty != 1 {
				t.Fatalf("unexpected qty %v", bumper.Qty)
			}
			if bumper.PriceEach == nil || *bumper.PriceEach != 1234.56 {
				t.Fatalf("unexpected unit price %v", bumper.PriceEach)
			}
			if bumper.OrderDate != "2025-12-01" || bumper.DeliveryDate != "2025-12-03" {
				t.Fatalf("unexpected dates %q %q", bumper.OrderDate, bumper.DeliveryDate)
			}
			if !bumper.IsToOrder || !bumper.IsOrdered || bumper.IsDelivered {
				t.Fatalf("unexpected flags %+v", bumper)
			}
			if !bumper.IsMissing {
				t.Fatal("expected ordered but undelivered part to be missing")
			}
			if bumper.Status != "Bestellt" || bumper.StatusCode != "ordered" || bumper.RowID != "11" || bumper.PartID != "501" {
				t.Fatalf("unexpected status fields %+v", bumper)
			}

			mirror, ok := findPart(parts, "123")
			if !ok {
				t.Fatalf("expected part number from cell text, got %+v", parts)
			}
			if mirror.PriceTotal == nil || *mirror.PriceTotal != 22.6 {
				t.Fatalf("unexpected total %v", mirror.PriceTotal)
			}
			if mirror.OrderDate != "2025-12-01" || mirror.DeliveryDate != "2025-12-02" {
				t.Fatalf("unexpected split dates %q %q", mirror.OrderDate, mirror.DeliveryDate)
			}
			if mirror.IsMissing {
				t.Fatal("delivered part must not be missing despite keyword")
			}
		})
	}
}

func TestPartsTableAfterOtherTable(t *testing.T) {
	vehicle := `<table class="vehicle"><tr><th>Fahrzeug</th><th>Kennzeichen</th><th>Farbe</th></tr>
<tr><td>Golf</td><td>B-AB 123</td><td>blau</td></tr></table>`

	tests := []struct {
		name   string
		markup string
	}{
		{"parts table only", partsHTML},
		{"vehicle table first", vehicle + partsHTML},
		{"vehicle table after", partsHTML + vehicle},
	}
	for _, tt := range tests {
		for _, p := range parsers() {
			t.Run(tt.name+"/"+p.Name(), func(t *testing.T) {
				parts, _, err := p.Parts(tt.markup)
				if err != nil {
					t.Fatalf("Parts returned error: %v", err)
				}
				if len(parts) != 2 {
					t.Fatalf("expected 2 parts, got %d: %+v", len(parts), parts)
				}
				bumper, ok := findPart(parts, "5G0807221")
				if !ok {
					t.Fatalf("expected bumper part number, got %+v", parts)
				}
				if bumper.Description != "Stoßfänger vorne" || bumper.LeadNo != "L1" || bumper.OrderNo != "AN-9" {
					t.Fatalf("columns shifted by foreign headers: %+v", bumper)
				}
			})
		}
	}
}

func TestGenericTableParts(t *testing.T) {
	markup := `<table><tr><th>Teilenummer</th><th>Bezeichnung</th><th>Menge</th><th>Status</th><th>Lieferdatum</th></tr>
<tr><td>X1</td><td>Scheinwerfer</td><td>2</td><td>nicht geliefert</td><td>05.01.2026</td></tr>
<tr><td>X2</td><td>Blinker</td><td>1</td><td>da</td><td>-</td></tr></table>`
	for _, p := range parsers() {
		t.Run(p.Name(), func(t *testing.T) {
			parts, _, err := p.Parts(markup)
			if err != nil {
				t.Fatalf("Parts returned error: %v", err)
			}
			if len(parts) != 2 {
				t.Fatalf("expected 2 parts, got %+v", parts)
			}
			x1, _ := findPart(parts, "X1")
			if !x1.IsMissing || x1.DeliveryDate != "2026-01-05" || x1.Description != "Scheinwerfer" {
				t.Fatalf("unexpected X1 %+v", x1)
			}
			x2, _ := findPart(parts, "X2")
			if x2.IsMissing || x2.Qty == nil || *x2.Qty != 1 {
				t.Fatalf("unexpected X2 %+v", x2)
			}
		})
	}
}

func TestDataAttributePartsFallback(t *testing.T) {
	markup := `<div data-partno="P-1"></div><span data-part="P-2"></span><span data-part_no="P-1"></span>`
	for _, p := range parsers() {
		t.Run(p.Name(), func(t *testing.T) {
			parts, _, err := p.Parts(markup)
			if err != nil {
				t.Fatalf("Parts returned error: %v", err)
			}
			if len(parts) != 2 || parts[0].PartNo != "P-1" || parts[1].PartNo != "P-2" {
				t.Fatalf("unexpected parts %+v", parts)
			}
		})
	}
}

func TestPartsStatus(t *testing.T) {
	button := `<div><button class="btn rsvgp_status_dropdown" type="button"> Teile vollständig </button></div>`
	selectHTML := `<select name="parts_status"><option>offen</option><option selected>Teilweise bestellt</option></select>`
	for _, p := range parsers() {
		t.Run(p.Name(), func(t *testing.T) {
			if got := p.PartsStatus(button); got != "Teile vollständig" {
				t.Fatalf("button status = %q", got)
			}
			if got := p.PartsStatus(selectHTML); got != "Teilweise bestellt" {
				t.Fatalf("select status = %q", got)
			}
			if got := p.PartsStatus("<p>nothing</p>"); got != "" {
				t.Fatalf("expected empty status, got %q", got)
			}
		})
	}
}

func TestMissingKeyword(t *testing.T) {
	for in, want := range map[string]bool{
		"Rückstand":       true,
		"nicht geliefert": true,
		"OFFEN":           true,
		"geliefert":       false,
		"":                false,
	} {
		if got := fragment.MissingKeyword(in); got != want {
			t.Fatalf("MissingKeyword(%q) = %v, want %v", in, got, want)
		}
	}
}
