package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/vector"
)

// ReadCSV reads a dense CSV dataset, grounded on pbanos-botanic's
// pkg/bio.ReadCSVSet header/row parsing. The header's first column
// must be named "labels"; every other column is a feature, named by
// its header, read as float64, and skipped when blank or "?" to keep
// the resulting example's feature vector sparse. Multiple labels in
// the "labels" cell are separated by "|".
func ReadCSV(r io.Reader) ([]*example.Example, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) == 0 || header[0] != "labels" {
		return nil, fmt.Errorf("reading CSV header: first column must be %q, got %v", "labels", header)
	}

	var examples []*example.Example
	for lineNo := 2; ; lineNo++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", lineNo, err)
		}
		e, err := parseCSVRow(header, row)
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", lineNo, err)
		}
		examples = append(examples, e)
	}
	return examples, nil
}

func parseCSVRow(header, row []string) (*example.Example, error) {
	var labels []int32
	if row[0] != "" {
		for _, l := range strings.Split(row[0], "|") {
			v, err := strconv.ParseInt(l, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("parsing label %q: %w", l, err)
			}
			labels = append(labels, int32(v))
		}
	}
	var indices []int32
	var values []float64
	for i := 1; i < len(header) && i < len(row); i++ {
		v := row[i]
		if v == "" || v == "?" {
			continue
		}
		val, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing feature %q column value %q: %w", header[i], v, err)
		}
		indices = append(indices, int32(i-1))
		values = append(values, val)
	}
	return &example.Example{Features: &vector.Sparse{Indices: indices, Values: values}, Labels: labels}, nil
}
