package branchtrace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// reportSchemaVersion is bumped whenever the encoded Report layout changes.
const reportSchemaVersion uint16 = 1

// Format selects the report encoding.
type Format uint8

const (
	FormatMsgpack Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "msgpack"
}

// ParseFormat parses "msgpack" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "msgpack", "mp":
		return FormatMsgpack, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatMsgpack, fmt.Errorf("unknown report format %q (want msgpack or json)", s)
	}
}

// Report is the exported result of one or more runs.
type Report struct {
	Schema  uint16 `json:"schema" msgpack:"schema"`
	Project string `json:"project,omitempty" msgpack:"project,omitempty"`
	Runs    int    `json:"runs" msgpack:"runs"`
	// Coverage counts, per block key, the runs that covered it.
	Coverage map[string]int `json:"coverage" msgpack:"coverage"`
	Traces   []Trace        `json:"traces" msgpack:"traces"`
}

// Report returns the single-run report of t.
func (t *Tracer) Report() *Report {
	r := &Report{Schema: reportSchemaVersion, Runs: 1, Coverage: make(map[string]int, len(t.coverage))}
	for key := range t.coverage {
		r.Coverage[key] = 1
	}
	r.Traces = t.Traces()
	return r
}

// Merge folds other into r: coverage counts add up, distances keep the
// pointwise minimum and hits accumulate.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	if r.Coverage == nil {
		r.Coverage = make(map[string]int)
	}
	if r.Schema == 0 {
		r.Schema = reportSchemaVersion
	}
	r.Runs += other.Runs
	for key, n := range other.Coverage {
		r.Coverage[key] += n
	}
	index := make(map[string]int, len(r.Traces))
	for i, tr := range r.Traces {
		index[tr.Key] = i
	}
	for _, tr := range other.Traces {
		i, ok := index[tr.Key]
		if !ok {
			index[tr.Key] = len(r.Traces)
			r.Traces = append(r.Traces, tr)
			continue
		}
		dst := &r.Traces[i]
		dst.Hits += tr.Hits
		switch {
		case dst.HasDistance && tr.HasDistance:
			dst.Distance = dst.Distance.Min(tr.Distance)
		case tr.HasDistance:
			dst.Distance, dst.HasDistance = tr.Distance, true
		}
	}
	sort.Slice(r.Traces, func(i, j int) bool { return r.Traces[i].Key < r.Traces[j].Key })
}

// CoveredKeys returns the covered keys in sorted order.
func (r *Report) CoveredKeys() []string {
	keys := make([]string, 0, len(r.Coverage))
	for k := range r.Coverage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode writes r to w.
func (r *Report) Encode(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		return enc.Encode(r)
	}
}

// DecodeReport reads a report written by Encode.
func DecodeReport(rd io.Reader, f Format) (*Report, error) {
	var r Report
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(rd).Decode(&r)
	default:
		err = msgpack.NewDecoder(rd).Decode(&r)
	}
	if err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if r.Schema != reportSchemaVersion {
		return nil, fmt.Errorf("decode report: schema %d, want %d", r.Schema, reportSchemaVersion)
	}
	return &r, nil
}

// WriteFile writes r to path atomically through a temp file in the same
// directory.
func (r *Report) WriteFile(path string, f Format) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = r.Encode(tmp, f); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	// replace atomically
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string, f Format) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	defer file.Close()
	return DecodeReport(file, f)
}
