// Package metadata loads human-written column descriptions from
// per-table CSV files. Each file is named after its table
// (Player.csv describes the Player table) and carries at minimum a
// column_name header, with optional column_description and
// value_description columns.
package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LoadColumnDescriptions reads every *.csv file under dir and returns a
// map keyed by "table.column". A missing or empty directory yields an
// empty map; a malformed file is an error so bad metadata is caught at
// startup rather than silently dropped.
func LoadColumnDescriptions(dir string, logger *zap.Logger) (map[string]string, error) {
	if dir == "" {
		return map[string]string{}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("metadata directory not found, continuing without descriptions", zap.String("dir", dir))
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read metadata directory %s: %w", dir, err)
	}

	descriptions := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		table := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		path := filepath.Join(dir, entry.Name())
		if err := loadTableFile(path, table, descriptions); err != nil {
			return nil, fmt.Errorf("failed to load descriptions from %s: %w", path, err)
		}
	}

	logger.Info("column descriptions loaded",
		zap.String("dir", dir),
		zap.Int("columns", len(descriptions)))
	return descriptions, nil
}

func loadTableFile(path, table string, out map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to read header: %w", err)
	}

	nameIdx, descIdx, valueIdx := -1, -1, -1
	for i, field := range header {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "column_name", "original_column_name":
			if nameIdx < 0 {
				nameIdx = i
			}
		case "column_description":
			descIdx = i
		case "value_description":
			valueIdx = i
		}
	}
	if nameIdx < 0 {
		return fmt.Errorf("missing column_name header")
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		column := fieldAt(record, nameIdx)
		if column == "" {
			continue
		}
		desc := composeDescription(fieldAt(record, descIdx), fieldAt(record, valueIdx))
		if desc == "" {
			continue
		}
		out[fmt.Sprintf("%s.%s", table, column)] = desc
	}
	return nil
}

func fieldAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func composeDescription(description, valueDescription string) string {
	switch {
	case description != "" && valueDescription != "":
		return fmt.Sprintf("%s. Values: %s", description, valueDescription)
	case description != "":
		return description
	case valueDescription != "":
		return fmt.Sprintf("Values: %s", valueDescription)
	default:
		return ""
	}
}
