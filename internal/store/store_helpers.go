package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"plansync/internal/record"
)

// OrderColumns is the column list read by every order query, in scan order.
const OrderColumns = "id, short_name, plate, person, phone, email, damage, project_status, station_id, station_state, shop_date, repair_date, finish_date, planned_delivery_date, parts_status, missing_parts, est_hours_karo, est_hours_lack, est_hours_mech, fields_json, vehicle_json, last_synced_at"

const partColumns = "part_no, description, lead_no, order_no, row_id, part_id, qty, price_each, price_total, status, status_code, status_icon, order_date, delivery_date, eta_date, is_missing, is_to_order, is_ordered, is_delivered, is_backorder, is_mandatory, is_price_checked, raw_json"

func scanOrder(scanner interface{ Scan(dest ...any) error }) (*record.Order, error) {
	var (
		o            record.Order
		shortName    sql.NullString
		plate        sql.NullString
		person       sql.NullString
		phone        sql.NullString
		email        sql.NullString
		damage       sql.NullString
		status       sql.NullString
		stationID    sql.NullInt64
		stationState sql.NullString
		shopDate     sql.NullString
		repairDate   sql.NullString
		finishDate   sql.NullString
		plannedDate  sql.NullString
		partsStatus  sql.NullString
		missing      sql.NullInt64
		estKaro      sql.NullFloat64
		estLack      sql.NullFloat64
		estMech      sql.NullFloat64
		fieldsJSON   sql.NullString
		vehicleJSON  sql.NullString
		syncedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&o.ID,
		&shortName,
		&plate,
		&person,
		&phone,
		&email,
		&damage,
		&status,
		&stationID,
		&stationState,
		&shopDate,
		&repairDate,
		&finishDate,
		&plannedDate,
		&partsStatus,
		&missing,
		&estKaro,
		&estLack,
		&estMech,
		&fieldsJSON,
		&vehicleJSON,
		&syncedRaw,
	); err != nil {
		return nil, err
	}

	o.ShortName = shortName.String
	o.Plate = plate.String
	o.Person = person.String
	o.Phone = phone.String
	o.Email = email.String
	o.Damage = damage.String
	o.ProjectStatus = status.String
	o.StationID = nullInt64Ptr(stationID)
	o.StationState = stationState.String
	o.ShopDate = shopDate.String
	o.RepairDate = repairDate.String
	o.FinishDate = finishDate.String
	o.PlannedDate = plannedDate.String
	o.PartsStatus = partsStatus.String
	o.MissingParts = missing.Valid && missing.Int64 != 0
	o.EstKaro = nullFloatPtr(estKaro)
	o.EstLack = nullFloatPtr(estLack)
	o.EstMech = nullFloatPtr(estMech)
	o.Fields = decodeStringMap(fieldsJSON.String)
	o.VehicleInfo = decodeStringMap(vehicleJSON.String)
	if t, err := time.Parse(time.RFC3339, syncedRaw.String); err == nil {
		o.SyncedAt = t
	}
	return &o, nil
}

func scanPart(scanner interface{ Scan(dest ...any) error }) (record.Part, error) {
	var (
		p          record.Part
		leadNo     sql.NullString
		orderNo    sql.NullString
		rowID      sql.NullString
		partID     sql.NullString
		qty        sql.NullFloat64
		priceEach  sql.NullFloat64
		priceTotal sql.NullFloat64
		status     sql.NullString
		statusCode sql.NullString
		statusIcon sql.NullString
		orderDate  sql.NullString
		delivery   sql.NullString
		eta        sql.NullString
		rawJSON    sql.NullString
		flags      [7]sql.NullInt64
	)
	if err := scanner.Scan(
		&p.PartNo,
		&p.Description,
		&leadNo,
		&orderNo,
		&rowID,
		&partID,
		&qty,
		&priceEach,
		&priceTotal,
		&status,
		&statusCode,
		&statusIcon,
		&orderDate,
		&delivery,
		&eta,
		&flags[0],
		&flags[1],
		&flags[2],
		&flags[3],
		&flags[4],
		&flags[5],
		&flags[6],
		&rawJSON,
	); err != nil {
		return p, err
	}
	p.LeadNo = leadNo.String
	p.OrderNo = orderNo.String
	p.RowID = rowID.String
	p.PartID = partID.String
	p.Qty = nullFloatPtr(qty)
	p.PriceEach = nullFloatPtr(priceEach)
	p.PriceTotal = nullFloatPtr(priceTotal)
	p.Status = status.String
	p.StatusCode = statusCode.String
	p.StatusIcon = statusIcon.String
	p.OrderDate = orderDate.String
	p.DeliveryDate = delivery.String
	p.ETADate = eta.String
	set := func(i int) bool { return flags[i].Valid && flags[i].Int64 != 0 }
	p.IsMissing = set(0)
	p.IsToOrder = set(1)
	p.IsOrdered = set(2)
	p.IsDelivered = set(3)
	p.IsBackorder = set(4)
	p.IsMandatory = set(5)
	p.PriceChecked = set(6)
	if rawJSON.String != "" {
		_ = json.Unmarshal([]byte(rawJSON.String), &p.Raw)
	}
	return p, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeStringMap(raw string) map[string]string {
	out := map[string]string{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
