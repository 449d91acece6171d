package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"pi360-service/internal/domain"
	"pi360-service/internal/services"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Locations"

// Header of the exported locator table.
var Header = []any{"Rank", "Name", "Address", "Specialties", "Latitude", "Longitude", "Distance"}

// WriteXLSX writes the ranked table as a workbook. When reference is set it
// is written as the first row under the header.
func WriteXLSX(w io.Writer, reference *domain.GeoPoint, rows []services.TableRow) (err error) {
	if w == nil {
		return errors.New("export xlsx: writer is nil")
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export xlsx: close workbook: %w", cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export xlsx: rename sheet: %w", err)
	}

	milesStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("export xlsx: create style: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("export xlsx: stream writer: %w", err)
	}

	if err := sw.SetRow("A1", Header); err != nil {
		return fmt.Errorf("export xlsx: header: %w", err)
	}

	rowNum := 2
	if reference != nil {
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		row := []any{"", "Reference point", "", "", reference.Latitude, reference.Longitude, ""}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("export xlsx: reference row: %w", err)
		}
		rowNum++
	}

	for _, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		row := []any{
			r.Rank, r.Name, r.Address, r.Specialties,
			finiteOrBlank(r.Latitude), finiteOrBlank(r.Longitude),
			distanceCell(r.DistanceMiles, milesStyle),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("export xlsx: row %d: %w", rowNum, err)
		}
		rowNum++
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export xlsx: flush: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export xlsx: write: %w", err)
	}
	return nil
}

// The spreadsheet format has no NaN; leave such cells empty.
func finiteOrBlank(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

func distanceCell(d *float64, style int) any {
	if d == nil {
		return ""
	}
	return excelize.Cell{StyleID: style, Value: *d}
}
