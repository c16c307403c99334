package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrInvalidFormat = errors.New("invalid file format, please provide a CSV or EXCEL file")
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyFile     = errors.New("file has no header row")
	ErrMalformedFile = errors.New("file could not be read, please check its contents")
)

var requiredColumns = []string{"username", "email", "password", "is_active", "is_superuser"}

// * Row строка файла импорта; пустые булевы поля остаются nil
type Row struct {
	Line        int
	Username    string
	Email       string
	Password    string
	IsActive    *bool
	IsSuperuser *bool
}

// * Parse разбирает CSV или XLSX файл по расширению имени
func Parse(filename string, r io.Reader) ([]Row, error) {
	const op = "importer.Parse"

	var (
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := toRows(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFile, err)
	}

	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFile, err)
	}

	return rows, nil
}

func toRows(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	rows := make([]Row, 0, len(records)-1)

	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}

		cell := func(col string) string {
			pos := index[col]
			if pos >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[pos])
		}

		rows = append(rows, Row{
			Line:        i + 2,
			Username:    cell("username"),
			Email:       cell("email"),
			Password:    cell("password"),
			IsActive:    parseBool(cell("is_active")),
			IsSuperuser: parseBool(cell("is_superuser")),
		})
	}

	return rows, nil
}

func parseBool(s string) *bool {
	if s == "" {
		return nil
	}

	v, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return nil
	}

	return &v
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}

	return true
}
