package record_test

import (
	"testing"

	"plansync/internal/record"
)

func TestDeriveMissingPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		part    record.Part
		keyword bool
		want    bool
	}{
		{"nothing set", record.Part{}, false, false},
		{"backorder", record.Part{IsBackorder: true}, false, true},
		{"ordered not delivered", record.Part{IsOrdered: true}, false, true},
		{"to order not delivered", record.Part{IsToOrder: true}, false, true},
		{"keyword only", record.Part{}, true, true},
		{"delivered overrides keyword", record.Part{IsDelivered: true}, true, false},
		{"delivered overrides ordered", record.Part{IsOrdered: true, IsDelivered: true}, false, false},
		{"delivered but backordered", record.Part{IsDelivered: true, IsBackorder: true}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.part
			p.DeriveMissing(tt.keyword)
			if p.IsMissing != tt.want {
				t.Fatalf("IsMissing = %v, want %v", p.IsMissing, tt.want)
			}
		})
	}
}

func TestDedupePartsKeepsFirst(t *testing.T) {
	parts := []record.Part{
		{PartNo: "A1", Description: "Stossfaenger", Status: "first"},
		{PartNo: "B2", Description: "Spiegel"},
		{PartNo: "A1", Description: "Stossfaenger", Status: "second"},
		{PartNo: "A1", Description: "Halter"},
	}
	got := record.DedupeParts(parts)
	if len(got) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(got))
	}
	if got[0].Status != "first" {
		t.Fatalf("expected first occurrence retained, got %q", got[0].Status)
	}
}
