// Package report renders a learner's progress as an Excel workbook.
package report

import (
	"io"
	"time"

	"philosofium/backend/models"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Sheet1"

var header = []string{"Course ID", "Title", "State", "Progress %", "Completed", "Last Accessed"}

// WriteWorkbook writes one row per course view after a bold header row.
// Courses missing from the catalog keep an empty title.
func WriteWorkbook(w io.Writer, views []models.CourseProgressView) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return errors.Wrap(err, "writing header")
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, bold); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, v := range views {
		title := ""
		if v.CourseDetails != nil {
			title = v.CourseDetails.Title
		}
		row := []interface{}{
			v.Progress.CourseID,
			title,
			string(v.State),
			v.Progress.ProgressPercent,
			v.Progress.Completed,
			v.Progress.LastAccessed.UTC().Format(time.RFC3339),
		}
		for col, val := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, val); err != nil {
				return errors.Wrapf(err, "writing %s", cell)
			}
		}
	}

	if err := f.SetColWidth(SheetName, "A", "F", 22); err != nil {
		return errors.Wrap(err, "sizing columns")
	}
	return errors.Wrap(f.Write(w), "writing workbook")
}
