package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ProductCSVHeader is the column order of product exports and the header
// imports must carry. Only sku and name are required on import.
var ProductCSVHeader = []string{"sku", "name", "category", "unit", "price", "min_stock"}

// MaxProductCSVRows bounds a single import.
const MaxProductCSVRows = 10000

// ParsedProductCSVRecord is one data row of a product CSV.
type ParsedProductCSVRecord struct {
	Line     int
	SKU      string
	Name     string
	Category string
	Unit     string
	Price    int64
	MinStock int64
}

// RowError reports a rejected data row.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

var ErrEmptyCSV = errors.New("the CSV file is empty")

// ParseProductCSV reads product rows from r, which must already be UTF-8.
// Rows that cannot be read are returned as RowErrors; a bad header fails the
// whole file.
func ParseProductCSV(r io.Reader) ([]ParsedProductCSVRecord, []RowError, error) {
	reader := csv.NewReader(SkipBOM(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex, err := getColIndex(header, []string{"sku", "name"})
	if err != nil {
		return nil, nil, err
	}

	var records []ParsedProductCSVRecord
	var rowErrs []RowError
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rowErrs = append(rowErrs, RowError{Line: perr.StartLine, Message: perr.Err.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlank(rec) {
			continue
		}
		if len(records) >= MaxProductCSVRows {
			return nil, nil, fmt.Errorf("the CSV file has more than %d rows", MaxProductCSVRows)
		}

		get := func(key string) string {
			if idx, ok := colIndex[key]; ok && idx < len(rec) {
				return strings.TrimSpace(rec[idx])
			}
			return ""
		}

		parsed := ParsedProductCSVRecord{
			Line:     line,
			SKU:      get("sku"),
			Name:     get("name"),
			Category: get("category"),
			Unit:     get("unit"),
		}
		var msgs []string
		if parsed.Price, err = ParsePrice(get("price")); err != nil {
			msgs = append(msgs, "price: "+err.Error())
		}
		if parsed.MinStock, err = parseInt(get("min_stock")); err != nil {
			msgs = append(msgs, "min_stock: "+err.Error())
		}
		if len(msgs) > 0 {
			rowErrs = append(rowErrs, RowError{Line: line, Message: strings.Join(msgs, "; ")})
			continue
		}
		records = append(records, parsed)
	}
	return records, rowErrs, nil
}

// WriteProductCSV writes the export header followed by rows.
func WriteProductCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ProductCSVHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// ParsePrice reads a CSV price such as "12.50" or "1,200" into minor units.
// At most two decimals are accepted; an empty cell is zero.
func ParsePrice(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	whole, frac, dot := strings.Cut(strings.ReplaceAll(s, ",", ""), ".")
	if !isDigits(whole) || len(frac) > 2 || (dot && !isDigits(frac)) {
		return 0, errors.New("must be an amount like 12.50")
	}
	frac += strings.Repeat("0", 2-len(frac))
	n, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, errors.New("is too large")
	}
	return n, nil
}

// FormatPrice writes minor units the way ParsePrice reads them.
func FormatPrice(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0, errors.New("must be a whole number")
	}
	return n, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
