package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/pipeline"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Trip Request"

// ExcelRenderer writes a trip request into an xlsx workbook: a title block,
// the four category fields, then the participant table.
type ExcelRenderer struct {
	outputDir string
}

func NewExcelRenderer(outputDir string) *ExcelRenderer {
	return &ExcelRenderer{outputDir: outputDir}
}

func (r *ExcelRenderer) Render(ctx context.Context, doc pipeline.Document) (string, map[string]interface{}, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", nil, fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"CCE5FF"}, Pattern: 1},
	})

	f.SetCellValue(sheetName, "A1", "OFFICIAL TRIP REQUEST")
	f.MergeCell(sheetName, "A1", "D1")
	f.SetCellStyle(sheetName, "A1", "D1", titleStyle)

	f.SetCellValue(sheetName, "A2", fmt.Sprintf("Submitted: %s", doc.SubmittedAt.Format("02.01.2006 15:04")))
	if doc.SubmittedBy != "" {
		f.SetCellValue(sheetName, "A3", fmt.Sprintf("By: %s (%s)", doc.SubmittedBy, doc.Organization))
	}

	fields := []struct {
		label, value string
	}{
		{"Sport type:", doc.SportType},
		{"Event rank:", doc.EventRank},
		{"Country:", doc.Country},
		{"City:", doc.City},
	}
	row := 5
	for _, field := range fields {
		labelCell := fmt.Sprintf("A%d", row)
		f.SetCellValue(sheetName, labelCell, field.label)
		f.SetCellStyle(sheetName, labelCell, labelCell, headerStyle)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), field.value)
		row++
	}

	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "PARTICIPANTS")
	f.MergeCell(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row))
	row++

	headers := []string{"#", "Full name", "Date from", "Date to"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	row++

	for i, p := range doc.Participants {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), p.FullName)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), p.DateFrom)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), p.DateTo)
		row++
	}

	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "B", 40)
	f.SetColWidth(sheetName, "C", "D", 15)

	path := filepath.Join(r.outputDir, artifactName(doc.City))
	if err := f.SaveAs(path); err != nil {
		return "", nil, fmt.Errorf("saving workbook: %w", err)
	}

	logger.Log.WithField("path", path).Info("trip request artifact rendered")

	meta := map[string]interface{}{
		"format":       "xlsx",
		"participants": len(doc.Participants),
	}
	return path, meta, nil
}

func artifactName(city string) string {
	city = strings.ReplaceAll(city, "/", "_")
	city = strings.ReplaceAll(city, " ", "_")
	return fmt.Sprintf("trip_%s_%s.xlsx", city, time.Now().Format("20060102_150405"))
}
