// Package report renders owner earnings spreadsheets.
package report

import (
	"context"
	"io"
	"time"

	"parkshare/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the earnings rows.
const SheetName = "Earnings"

//nolint:gochecknoglobals
var header = []any{"Parking", "Address", "Reservation", "Started at", "Ended at", "Duration (min)", "Hourly price", "Amount"}

type excelReport struct{}

// NewExcelReport creates a ReportService that writes XLSX workbooks.
func NewExcelReport() service.ReportService {
	return &excelReport{}
}

// WriteEarnings writes one row per closed reservation followed by a total row.
func (r *excelReport) WriteEarnings(ctx context.Context, w io.Writer, rows []service.EarningsRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return errors.WithStack(err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.WithStack(err)
	}
	// built-in number format 2 is "0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return errors.WithStack(err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "H1", headerStyle); err != nil {
		return errors.WithStack(err)
	}

	var totalCents int64
	line := 2
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		occ := row.Occupation
		if occ == nil || occ.EndedAt == nil || occ.BillCents == nil {
			continue
		}

		values := []any{
			parkingTitle(row),
			parkingAddress(row),
			occ.ID.String(),
			occ.StartedAt.UTC().Format(time.RFC3339),
			occ.EndedAt.UTC().Format(time.RFC3339),
			int64(occ.EndedAt.Sub(occ.StartedAt) / time.Minute),
			centsToUnits(occ.HourlyPriceCents),
			centsToUnits(*occ.BillCents),
		}
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return errors.WithStack(err)
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return errors.WithStack(err)
		}
		totalCents += *occ.BillCents
		line++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(7, line)
	totalCell, _ := excelize.CoordinatesToCellName(8, line)
	if err := f.SetCellValue(SheetName, totalLabel, "Total"); err != nil {
		return errors.WithStack(err)
	}
	if err := f.SetCellValue(SheetName, totalCell, centsToUnits(totalCents)); err != nil {
		return errors.WithStack(err)
	}
	if err := f.SetCellStyle(SheetName, totalLabel, totalLabel, headerStyle); err != nil {
		return errors.WithStack(err)
	}

	firstMoney, _ := excelize.CoordinatesToCellName(7, 2)
	if err := f.SetCellStyle(SheetName, firstMoney, totalCell, moneyStyle); err != nil {
		return errors.WithStack(err)
	}
	if err := f.SetColWidth(SheetName, "A", "E", 24); err != nil {
		return errors.WithStack(err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}

	return nil
}

func parkingTitle(row service.EarningsRow) string {
	if row.Parking == nil {
		return ""
	}

	return row.Parking.Title
}

func parkingAddress(row service.EarningsRow) string {
	if row.Parking == nil {
		return ""
	}

	return row.Parking.Location.Address
}

func centsToUnits(cents int64) float64 {
	return float64(cents) / 100
}
