package service

import (
	"context"
	"io"

	"parkshare/internal/domain/entity"
)

// EarningsRow is one closed reservation in an earnings report.
type EarningsRow struct {
	Parking    *entity.Parking
	Occupation *entity.Occupation
}

// ReportService renders owner reports.
type ReportService interface {
	// WriteEarnings writes a spreadsheet of the rows to w.
	WriteEarnings(ctx context.Context, w io.Writer, rows []EarningsRow) error
}
