package main

import (
	"strconv"
	"time"

	"plansync/internal/record"
)

// orderView is the JSON shape of one order in query and show output.
type orderView struct {
	ID                  int64             `json:"id"`
	ShortName           string            `json:"short_name"`
	Plate               string            `json:"plate"`
	Person              string            `json:"person"`
	Phone               string            `json:"phone"`
	Email               string            `json:"email"`
	Damage              string            `json:"damage"`
	ProjectStatus       string            `json:"project_status"`
	StationID           *int64            `json:"station_id"`
	StationState        string            `json:"station_state"`
	ShopDate            string            `json:"shop_date"`
	RepairDate          string            `json:"repair_date"`
	FinishDate          string            `json:"finish_date"`
	PlannedDeliveryDate string            `json:"planned_delivery_date"`
	PartsStatus         string            `json:"parts_status"`
	MissingParts        bool              `json:"missing_parts"`
	EstHoursKaro        *float64          `json:"est_hours_karo"`
	EstHoursLack        *float64          `json:"est_hours_lack"`
	EstHoursMech        *float64          `json:"est_hours_mech"`
	Fields              map[string]string `json:"fields,omitempty"`
	Vehicle             map[string]string `json:"vehicle,omitempty"`
	LastSyncedAt        string            `json:"last_synced_at"`
}

func newOrderView(o record.Order, withFields bool) orderView {
	v := orderView{
		ID:                  o.ID,
		ShortName:           o.ShortName,
		Plate:               o.Plate,
		Person:              o.Person,
		Phone:               o.Phone,
		Email:               o.Email,
		Damage:              o.Damage,
		ProjectStatus:       o.ProjectStatus,
		StationID:           o.StationID,
		StationState:        o.StationState,
		ShopDate:            o.ShopDate,
		RepairDate:          o.RepairDate,
		FinishDate:          o.FinishDate,
		PlannedDeliveryDate: o.PlannedDate,
		PartsStatus:         o.PartsStatus,
		MissingParts:        o.MissingParts,
		EstHoursKaro:        o.EstKaro,
		EstHoursLack:        o.EstLack,
		EstHoursMech:        o.EstMech,
		Vehicle:             o.VehicleInfo,
	}
	if withFields {
		v.Fields = o.Fields
	}
	if !o.SyncedAt.IsZero() {
		v.LastSyncedAt = o.SyncedAt.Format(time.RFC3339)
	}
	return v
}

func stationLabel(o record.Order) string {
	station := ""
	if o.StationID != nil {
		station = strconv.FormatInt(*o.StationID, 10)
	}
	return o.ProjectStatus + " / " + station + "@" + o.StationState
}

func boolDigit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func floatText(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func orderRows(orders []record.Order) [][]string {
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []string{
			strconv.FormatInt(o.ID, 10),
			o.ShortName,
			o.Plate,
			o.Person,
			o.Phone,
			o.ShopDate,
			o.FinishDate,
			stationLabel(o),
			boolDigit(o.MissingParts),
		})
	}
	return rows
}

var orderColumns = []column{
	right("ID"),
	left("Short name"),
	left("Plate"),
	capped("Person", 40),
	left("Phone"),
	left("Shop date"),
	left("Finish date"),
	capped("Status", 40),
	right("Missing parts"),
}
