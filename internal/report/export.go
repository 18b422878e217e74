// Package report exports view rows to files and archives them.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"movie-pipeline/internal/model"
	"movie-pipeline/pkg/utils"

	"github.com/sirupsen/logrus"
)

// Formats written for every view.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// TitleSeparator joins titles inside one CSV cell.
const TitleSeparator = "|"

// ViewRows are the rows read from one view.
type ViewRows struct {
	View string          `json:"view"`
	Rows []model.ViewRow `json:"rows"`
}

// Exporter writes view rows into a per-run directory.
type Exporter struct {
	out     *utils.OutputManager
	formats []string
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewExporter writes the given formats (csv and json when empty) under out.
func NewExporter(out *utils.OutputManager, log logrus.FieldLogger, formats ...string) *Exporter {
	if len(formats) == 0 {
		formats = []string{FormatCSV, FormatJSON}
	}
	return &Exporter{out: out, formats: formats, log: log, now: time.Now}
}

// Export writes one file per view and format. A failed file is reported in
// its result and does not stop the others; the first failure is returned.
func (e *Exporter) Export(ctx context.Context, runID string, views []ViewRows) ([]model.ExportResult, error) {
	var results []model.ExportResult
	var firstErr error

	for _, v := range views {
		for _, format := range e.formats {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			result := e.exportView(runID, v, format)
			if !result.Success && firstErr == nil {
				firstErr = fmt.Errorf("export %s as %s: %s", v.View, format, result.Error)
			}
			results = append(results, result)
		}
	}
	return results, firstErr
}

func (e *Exporter) exportView(runID string, v ViewRows, format string) model.ExportResult {
	result := model.ExportResult{Type: format, View: v.View, Timestamp: e.now().UTC()}

	path, err := e.out.ReportPath(runID, v.View, format)
	if err == nil {
		result.Path = path
		switch format {
		case FormatCSV:
			err = writeCSV(path, v.Rows)
		case FormatJSON:
			err = writeJSON(path, runID, v, result.Timestamp)
		default:
			err = fmt.Errorf("unsupported export format %q", format)
		}
	}

	log := e.log.WithFields(logrus.Fields{"view": v.View, "format": format, "path": result.Path})
	if err != nil {
		result.Error = err.Error()
		log.WithError(err).Error("Export failed")
		return result
	}
	result.RecordCount = len(v.Rows)
	result.Success = true
	log.WithField("records", result.RecordCount).Info("View exported")
	return result
}

func writeCSV(path string, rows []model.ViewRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"key", "metric", "titles"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		record := []string{row.Key, utils.AsString(row.Metric), strings.Join(row.Titles, TitleSeparator)}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(path, runID string, v ViewRows, at time.Time) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	rows := v.Rows
	if rows == nil {
		rows = []model.ViewRow{}
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]interface{}{
		"export_info": map[string]interface{}{
			"run_id":       runID,
			"view":         v.View,
			"exported_at":  at,
			"record_count": len(rows),
		},
		"data": rows,
	})
}
