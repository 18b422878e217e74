package utils

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// contentTypes maps report extensions to MIME types.
var contentTypes = map[string]string{
	".csv":  "text/csv",
	".json": "application/json",
}

// OutputManager lays out report files as <base>/<run id>/<view>.<format>.
type OutputManager struct {
	BaseOutputDir string
}

func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{BaseOutputDir: baseOutputDir}
}

// RunDir creates the report directory of a run.
func (om *OutputManager) RunDir(runID string) (string, error) {
	dir := filepath.Join(om.BaseOutputDir, filepath.Base(runID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory for run %s: %w", runID, err)
	}
	return dir, nil
}

// ReportPath returns the file a view is exported to in the given format.
// Path separators in the view name are dropped.
func (om *OutputManager) ReportPath(runID, view, format string) (string, error) {
	dir, err := om.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(view)+"."+strings.ToLower(format)), nil
}

// ObjectKey is the archive key of a report file: <prefix>/<run id>/<file name>.
func (om *OutputManager) ObjectKey(prefix, runID, file string) string {
	return path.Join(prefix, runID, filepath.Base(file))
}

// ContentType returns the MIME type of a report file.
func (om *OutputManager) ContentType(file string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(file))]; ok {
		return ct
	}
	return "application/octet-stream"
}
