package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/uyouii/optimal-stopping/common"
)

const DefaultPriceColumn = "price"

// LoadCSV reads prices from one column of a csv file. See ReadPrices.
func LoadCSV(path, column string) (*SliceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	prices, err := ReadPrices(f, column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewSliceSource(prices), nil
}

// ReadPrices parses one price per record. A first record whose price field is not a number
// is a header, and column then selects the field by name. Without a header the first field
// is used.
func ReadPrices(r io.Reader, column string) ([]float64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty price file: %w", common.ErrorInsufficientData)
	}

	col, start := 0, 0
	if _, err := strconv.ParseFloat(strings.TrimSpace(records[0][0]), 64); err != nil {
		start = 1
		if column == "" {
			column = DefaultPriceColumn
		}
		col = -1
		for i, name := range records[0] {
			if strings.EqualFold(strings.TrimSpace(name), column) {
				col = i
				break
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("column %q not in header %v: %w", column, records[0], common.ErrorInvalidValue)
		}
	}

	prices := make([]float64, 0, len(records)-start)
	for line, record := range records[start:] {
		if col >= len(record) {
			return nil, fmt.Errorf("line %d has %d fields: %w", line+start+1, len(record), common.ErrorInvalidValue)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, fmt.Errorf("line %d price %q: %w", line+start+1, record[col], common.ErrorInvalidValue)
		}
		prices = append(prices, price)
	}
	return prices, nil
}
