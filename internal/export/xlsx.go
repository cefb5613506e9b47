// Package export renders activity lists as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"example.com/activityplanner/internal/domain"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Hoạt động"

// Location is the zone start times are shown in.
var Location = time.FixedZone("ICT", 7*60*60)

var headers = []string{
	"STT",
	"Tên hoạt động",
	"Loại hoạt động",
	"Đơn vị tổ chức",
	"Thời gian bắt đầu",
	"Địa điểm",
	"Số người tham gia",
	"Trạng thái",
}

// FileName returns the attachment name for an export generated at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("hoat_dong_%s.xlsx", t.In(Location).Format("20060102_150405"))
}

// WriteActivities writes one row per activity, labelled through catalog.
func WriteActivities(w io.Writer, activities []domain.Activity, catalog domain.Catalog) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
	}

	for i, a := range activities {
		row := []any{
			i + 1,
			a.Name,
			catalog.TypeLabel(a.Type),
			a.OrganizingUnit,
			a.StartTime.In(Location).Format("02/01/2006 15:04"),
			a.Location,
			len(a.Participants),
			catalog.StatusLabel(a.Status),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(sheetName, "B", "B", 48); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "C", "F", 24); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
