package cli

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"spatialcv/internal/frame"
)

// loadCSV reads a headed CSV file into a frame. A column whose every cell
// parses as a float becomes numeric; anything else becomes a factor. Empty
// cells are not supported.
func loadCSV(path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: need a header row and at least one data row", path)
	}

	header := rows[0]
	data := rows[1:]
	cols := make([]frame.Column, len(header))
	for j, name := range header {
		nums := make([]float64, len(data))
		numeric := true
		for i, row := range data {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				numeric = false
				break
			}
			nums[i] = v
		}
		if numeric {
			cols[j] = frame.NewNumeric(name, nums)
			continue
		}
		strs := make([]string, len(data))
		for i, row := range data {
			strs[i] = row[j]
		}
		cols[j] = frame.NewFactor(name, strs)
	}
	return frame.New(cols...)
}
