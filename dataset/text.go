package dataset

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/vector"
)

// ReadText reads the sparse text format of §6: a header line
// "<examples> <features> <labels>" followed by one line per example,
// "l1,l2,... idx1:val1 idx2:val2 ...", labels and feature pairs
// separated by a single space, feature indices ascending and 0-based.
func ReadText(r io.Reader) ([]*example.Example, Info, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return nil, Info{}, fmt.Errorf("reading text dataset: empty input")
	}
	info, err := parseHeader(scanner.Text())
	if err != nil {
		return nil, Info{}, err
	}

	examples := make([]*example.Example, 0, info.Examples)
	for lineNo := 2; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := parseTextLine(line)
		if err != nil {
			return nil, Info{}, fmt.Errorf("reading text dataset: line %d: %w", lineNo, err)
		}
		examples = append(examples, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, Info{}, fmt.Errorf("reading text dataset: %w", err)
	}
	return examples, info, nil
}

func parseHeader(line string) (Info, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Info{}, fmt.Errorf("reading text dataset: header %q: want 3 fields, got %d", line, len(fields))
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return Info{}, fmt.Errorf("reading text dataset: header example count: %w", err)
	}
	feats, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return Info{}, fmt.Errorf("reading text dataset: header feature count: %w", err)
	}
	labels, err := strconv.ParseInt(fields[2], 10, 32)
	if err != nil {
		return Info{}, fmt.Errorf("reading text dataset: header label count: %w", err)
	}
	return Info{Examples: n, Features: int32(feats), Labels: int32(labels)}, nil
}

func parseTextLine(line string) (*example.Example, error) {
	parts := strings.SplitN(line, " ", 2)
	var labels []int32
	if parts[0] != "" {
		for _, l := range strings.Split(parts[0], ",") {
			v, err := strconv.ParseInt(l, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("parsing label %q: %w", l, err)
			}
			labels = append(labels, int32(v))
		}
	}
	var indices []int32
	var values []float64
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		for _, pair := range strings.Fields(parts[1]) {
			idxStr, valStr, ok := strings.Cut(pair, ":")
			if !ok {
				return nil, fmt.Errorf("parsing feature pair %q: missing ':'", pair)
			}
			idx, err := strconv.ParseInt(idxStr, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("parsing feature index %q: %w", idxStr, err)
			}
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing feature value %q: %w", valStr, err)
			}
			indices = append(indices, int32(idx))
			values = append(values, val)
		}
	}
	return &example.Example{Features: &vector.Sparse{Indices: indices, Values: values}, Labels: labels}, nil
}

// WriteText writes examples back out in the format ReadText parses,
// for round-tripping a dataset or exporting one built by another
// reader in this package.
func WriteText(w io.Writer, examples []*example.Example, features int32) error {
	var labels int32
	for _, e := range examples {
		for _, l := range e.Labels {
			if l+1 > labels {
				labels = l + 1
			}
		}
	}
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d %d %d\n", len(examples), features, labels); err != nil {
		return err
	}
	for _, e := range examples {
		labelStrs := make([]string, len(e.Labels))
		sortedLabels := append([]int32(nil), e.Labels...)
		sort.Slice(sortedLabels, func(i, j int) bool { return sortedLabels[i] < sortedLabels[j] })
		for i, l := range sortedLabels {
			labelStrs[i] = strconv.FormatInt(int64(l), 10)
		}
		if _, err := bw.WriteString(strings.Join(labelStrs, ",")); err != nil {
			return err
		}
		if e.Features != nil {
			for i, idx := range e.Features.Indices {
				if _, err := fmt.Fprintf(bw, " %d:%g", idx, e.Features.Values[i]); err != nil {
					return err
				}
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
