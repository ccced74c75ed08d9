package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"recap/internal/timeutil"
	"recap/workitem"
)

// CSVFileAdapter reads already-normalized activity records from a CSV
// export. One row per record; the expected columns are date, source,
// project_path, project_name, hours, title, description, commit_hash and
// files (semicolon separated). Header matching is case- and
// separator-insensitive.
type CSVFileAdapter struct {
	paths []string
}

func NewCSVFileAdapter(paths ...string) *CSVFileAdapter {
	return &CSVFileAdapter{paths: paths}
}

func (a *CSVFileAdapter) Name() string {
	return "csv-file"
}

func (a *CSVFileAdapter) ListActivity(ctx context.Context, rng workitem.DateRange) ([]workitem.ActivityRecord, error) {
	var out []workitem.ActivityRecord
	for _, path := range a.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := readActivityCSV(path)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			if record.Date.Before(timeutil.StartOfDay(rng.From)) || record.Date.After(rng.To) {
				continue
			}
			out = append(out, record)
		}
	}
	return out, nil
}

type csvRow struct {
	number int
	values map[string]string
}

func (r csvRow) get(keys ...string) string {
	for _, key := range keys {
		if value, ok := r.values[key]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func readActivityCSV(path string) ([]workitem.ActivityRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file %s: %w", path, err)
	}
	defer file.Close()

	records, err := parseActivityCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func parseActivityCSV(r io.Reader) ([]workitem.ActivityRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	normalized := make([]string, len(headers))
	for i, header := range headers {
		normalized[i] = normalizeCSVHeader(header)
	}

	records := make([]workitem.ActivityRecord, 0, 128)
	rowNumber := 1
	for {
		raw, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", rowNumber+1, err)
		}
		rowNumber++

		values := make(map[string]string, len(normalized))
		for i := range normalized {
			if i < len(raw) {
				values[normalized[i]] = raw[i]
			}
		}

		record, ok, err := mapActivityRow(csvRow{number: rowNumber, values: values})
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, record)
		}
	}
	return records, nil
}

func mapActivityRow(row csvRow) (workitem.ActivityRecord, bool, error) {
	title := row.get("title", "summary")
	if title == "" && row.get("description") == "" {
		return workitem.ActivityRecord{}, false, nil
	}

	date, err := timeutil.ParseDay(row.get("date", "day"))
	if err != nil {
		return workitem.ActivityRecord{}, false, fmt.Errorf("row %d: parse date: %w", row.number, err)
	}

	hours, err := parseHours(row.get("hours", "duration"))
	if err != nil {
		return workitem.ActivityRecord{}, false, fmt.Errorf("row %d: %w", row.number, err)
	}

	source := workitem.Source(row.get("source"))
	switch source {
	case workitem.SourceCodingSession, workitem.SourceVersionControl, workitem.SourceManual:
	case "":
		source = workitem.SourceCodingSession
	default:
		return workitem.ActivityRecord{}, false, fmt.Errorf("row %d: unknown source %q", row.number, source)
	}

	record := workitem.ActivityRecord{
		Source:      source,
		ProjectPath: row.get("projectpath", "project"),
		ProjectName: row.get("projectname"),
		Date:        date,
		Hours:       hours,
		Title:       title,
		Description: row.get("description"),
	}
	if record.ProjectName == "" && record.ProjectPath != "" {
		parts := strings.Split(strings.TrimRight(record.ProjectPath, "/"), "/")
		record.ProjectName = parts[len(parts)-1]
	}
	if hash := row.get("commithash", "commit"); hash != "" {
		record.Commits = []workitem.Commit{{
			Hash:    hash,
			Message: title,
			Time:    date,
		}}
	}
	if files := row.get("files"); files != "" {
		for _, file := range strings.Split(files, ";") {
			if file = strings.TrimSpace(file); file != "" {
				record.Files = append(record.Files, file)
			}
		}
	}
	return record, true, nil
}

// parseHours accepts both decimal-point and decimal-comma values.
func parseHours(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, nil
	}
	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	hours, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hours %q: %w", raw, err)
	}
	if hours < 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0, fmt.Errorf("hours must be a non-negative number, got %q", raw)
	}
	return hours, nil
}

func normalizeCSVHeader(header string) string {
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "", ".", "")
	return replacer.Replace(strings.ToLower(strings.TrimSpace(header)))
}
