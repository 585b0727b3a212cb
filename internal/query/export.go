package query

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"plansync/internal/record"
)

const exportSheet = "Orders"

var exportHeaders = []string{
	"ID", "Short name", "Plate", "Person", "Phone", "Email", "Shop date", "Repair date",
	"Finish date", "Planned delivery", "Status", "Station", "Station state", "Parts status",
	"Missing parts", "Damage",
}

func exportRow(o record.Order) []any {
	station := ""
	if o.StationID != nil {
		station = strconv.FormatInt(*o.StationID, 10)
	}
	missing := 0
	if o.MissingParts {
		missing = 1
	}
	return []any{
		o.ID, o.ShortName, o.Plate, o.Person, o.Phone, o.Email, o.ShopDate, o.RepairDate,
		o.FinishDate, o.PlannedDate, o.ProjectStatus, station, o.StationState, o.PartsStatus,
		missing, o.Damage,
	}
}

// ExportXLSX writes orders as a single-sheet workbook with a bold header row.
func ExportXLSX(w io.Writer, orders []record.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", last, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := exportRow(o)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(exportSheet, "B", "C", 16)
	_ = f.SetColWidth(exportSheet, "D", "F", 24)
	_ = f.SetColWidth(exportSheet, "P", "P", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
