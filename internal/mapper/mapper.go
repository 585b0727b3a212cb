// Package mapper turns parsed label/value fields and parts data into the
// canonical order row. Every input is optional; absent labels leave the
// corresponding column empty.
package mapper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"plansync/internal/locale"
	"plansync/internal/record"
)

// Canonical column keys resolved from form labels.
const (
	ColPerson        = "person"
	ColPhone         = "phone"
	ColEmail         = "email"
	ColDamage        = "damage"
	ColProjectStatus = "project_status"
	ColShopDate      = "shop_date"
	ColRepairDate    = "repair_date"
	ColFinishDate    = "finish_date"
	ColPlannedDate   = "planned_delivery_date"
	ColPartsStatus   = "parts_status"
	ColEstKaro       = "est_hours_karo"
	ColEstLack       = "est_hours_lack"
	ColEstMech       = "est_hours_mech"
	ColPlate         = "plate"
)

// Synonyms lists, per canonical column, the form labels accepted as its
// source in order of preference.
var Synonyms = map[string][]string{
	ColPerson:        {"Fahrername", "Halter"},
	ColPhone:         {"Telefon", "Telefonnummer"},
	ColEmail:         {"Kunden E-Mail", "E-Mail"},
	ColDamage:        {"Kategorie", "Damage"},
	ColProjectStatus: {"Projekt-Status"},
	ColShopDate:      {"Werkstattstart"},
	ColRepairDate:    {"Fahrzeugeingang (Soll)", "Fahrzeugeingang (Ist)"},
	ColFinishDate:    {"Termin Fertigstellung"},
	ColPlannedDate:   {"Plan Auslieferung"},
	ColPartsStatus:   {"E-Teile Status"},
	ColEstKaro:       {"Sollstunden Karo"},
	ColEstLack:       {"Sollstunden Lack"},
	ColEstMech:       {"Sollstunden Mech"},
	ColPlate:         {"Kennzeichen", "Fahrzeug"},
}

// VehicleLabels maps form labels onto vehicle info keys.
var VehicleLabels = []struct{ Label, Key string }{
	{"VIN", "vin"},
	{"KBA", "kba"},
	{"Farbe Nummer", "color_code"},
	{"Farbton", "color_name"},
	{"Kennzeichen", "plate"},
	{"Kilometerstand", "mileage"},
	{"Fahrzeug", "vehicle"},
	{"Klasse", "class"},
	{"Leasing/Flotte", "leasing"},
}

// vehicleMeta maps parts table attributes onto vehicle info keys. They only
// fill keys the form left empty.
var vehicleMeta = []struct{ Attr, Key string }{
	{"data-vin", "vin"},
	{"data-make", "make"},
	{"data-number_plate", "plate"},
	{"data-pnum", "order_no"},
}

var (
	stationPattern = regexp.MustCompile(`^(\d+)@([a-zA-Z_]+)$`)
	noPartsPattern = regexp.MustCompile(`(?i)ohne e-?teile`)
	missingPattern = regexp.MustCompile(`(?i)fehlt|offen|rückstand|wartet|nicht.*da|backorder|unvollständig`)
)

// PartsInfo carries the optional parts inputs of BuildOrder.
type PartsInfo struct {
	// Status is the parts status read from the parts tab. It wins over the
	// form's "E-Teile Status".
	Status string
	List   []record.Part
	Meta   map[string]string
}

// ParseStation splits a station token such as "4@finished". Malformed tokens
// yield nil and "".
func ParseStation(token string) (*int64, string) {
	m := stationPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return nil, ""
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, ""
	}
	return &id, strings.ToLower(m[2])
}

// Resolve returns the first non-empty value among the synonyms of column.
func Resolve(fields map[string]string, column string) string {
	for _, label := range Synonyms[column] {
		if v := strings.TrimSpace(fields[label]); v != "" {
			return v
		}
	}
	return ""
}

// MissingParts applies the parts status heuristics: a missing keyword in the
// status or any missing part marks the order, and an explicit "ohne E-Teile"
// clears it.
func MissingParts(status string, parts []record.Part) bool {
	if noPartsPattern.MatchString(status) {
		return false
	}
	if missingPattern.MatchString(status) {
		return true
	}
	for _, p := range parts {
		if p.IsMissing {
			return true
		}
	}
	return false
}

// VehicleInfo builds the vehicle side map from form fields and parts table
// metadata.
func VehicleInfo(fields map[string]string, meta map[string]string) map[string]string {
	out := map[string]string{}
	for _, vl := range VehicleLabels {
		if v := strings.TrimSpace(fields[vl.Label]); v != "" {
			out[vl.Key] = v
		}
	}
	for _, vm := range vehicleMeta {
		if _, ok := out[vm.Key]; ok {
			continue
		}
		if v := strings.TrimSpace(meta[vm.Attr]); v != "" {
			out[vm.Key] = v
		}
	}
	return out
}

// BuildOrder maps one project entry and its parsed form fields to the
// canonical order.
func BuildOrder(project record.Project, fields map[string]string, parts PartsInfo, now time.Time) record.Order {
	if fields == nil {
		fields = map[string]string{}
	}
	stationID, stationState := ParseStation(project.Station)

	partsStatus := strings.TrimSpace(parts.Status)
	if partsStatus == "" {
		partsStatus = Resolve(fields, ColPartsStatus)
	}

	plate := Resolve(fields, ColPlate)
	if plate == "" {
		plate = project.ShortName
	}

	repairDate, _ := locale.ParseDate(Resolve(fields, ColRepairDate))

	return record.Order{
		ID:            project.ID,
		ShortName:     project.ShortName,
		Plate:         plate,
		Person:        Resolve(fields, ColPerson),
		Phone:         Resolve(fields, ColPhone),
		Email:         Resolve(fields, ColEmail),
		Damage:        Resolve(fields, ColDamage),
		ProjectStatus: Resolve(fields, ColProjectStatus),
		StationID:     stationID,
		StationState:  stationState,
		ShopDate:      locale.NormalizeDate(Resolve(fields, ColShopDate)),
		RepairDate:    repairDate,
		FinishDate:    locale.NormalizeDate(Resolve(fields, ColFinishDate)),
		PlannedDate:   locale.NormalizeDate(Resolve(fields, ColPlannedDate)),
		PartsStatus:   partsStatus,
		MissingParts:  MissingParts(partsStatus, parts.List),
		EstKaro:       locale.DecimalPtr(Resolve(fields, ColEstKaro)),
		EstLack:       locale.DecimalPtr(Resolve(fields, ColEstLack)),
		EstMech:       locale.DecimalPtr(Resolve(fields, ColEstMech)),
		Fields:        fields,
		VehicleInfo:   VehicleInfo(fields, parts.Meta),
		SyncedAt:      now.UTC(),
	}
}
