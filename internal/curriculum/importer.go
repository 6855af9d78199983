package curriculum

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ImportConfig defines how a curriculum spreadsheet is read. The tracks sheet
// carries rows of (track, low fact ID, high fact ID); the targets sheet rows
// of (grade, target seconds).
type ImportConfig struct {
	FilePath     string // Path to the Excel or CSV file
	TracksSheet  string // Name of the sheet with track ranges
	TargetsSheet string // Name of the sheet with grade fluency targets
	StartRow     int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration.
func DefaultImportConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:     path,
		TracksSheet:  "Tracks",
		TargetsSheet: "Targets",
		StartRow:     2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation.
type ImportResult struct {
	TracksLoaded  int
	TargetsLoaded int
	Errors        []string
}

// Import loads curriculum tables from an Excel or CSV file and installs them
// as the active tables. A CSV file may only carry track ranges.
func Import(config ImportConfig) (*ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))

	if ext == ".csv" {
		return importFromCSV(config)
	}

	return importFromExcel(config)
}

func importFromExcel(config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	result := &ImportResult{Errors: make([]string, 0)}
	ranges := make(map[string]Range)
	targets := make(map[int]float64)

	rows, err := f.GetRows(config.TracksSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get track rows: %v", err)
	}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		if err := parseTrackRow(row, ranges); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		result.TracksLoaded++
	}

	rows, err = f.GetRows(config.TargetsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get target rows: %v", err)
	}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		if err := parseTargetRow(row, targets); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		result.TargetsLoaded++
	}

	SetTrackRanges(ranges)
	SetFluencyTargets(targets)
	return result, nil
}

func importFromCSV(config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	result := &ImportResult{Errors: make([]string, 0)}
	ranges := make(map[string]Range)

	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %v", err)
		}

		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		if err := parseTrackRow(row, ranges); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		result.TracksLoaded++
	}

	SetTrackRanges(ranges)
	return result, nil
}

func parseTrackRow(row []string, ranges map[string]Range) error {
	if len(row) < 3 {
		return fmt.Errorf("expected track, low, high; got %d columns", len(row))
	}
	trackID := strings.TrimSpace(row[0])
	if trackID == "" {
		return fmt.Errorf("empty track ID")
	}
	low, err := strconv.Atoi(strings.TrimSpace(row[1]))
	if err != nil {
		return fmt.Errorf("bad low fact ID %q", row[1])
	}
	high, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return fmt.Errorf("bad high fact ID %q", row[2])
	}
	if high < low {
		return fmt.Errorf("range [%d,%d] is inverted", low, high)
	}
	ranges[trackID] = Range{Low: low, High: high}
	return nil
}

func parseTargetRow(row []string, targets map[int]float64) error {
	if len(row) < 2 {
		return fmt.Errorf("expected grade, target; got %d columns", len(row))
	}
	grade, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return fmt.Errorf("bad grade %q", row[0])
	}
	if grade < 0 || grade > 12 {
		return fmt.Errorf("grade %d out of range", grade)
	}
	target, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	if err != nil || target <= 0 {
		return fmt.Errorf("bad fluency target %q", row[1])
	}
	targets[grade] = target
	return nil
}
