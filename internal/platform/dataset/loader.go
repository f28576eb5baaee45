// Package dataset loads a frozen study snapshot from CSV files, one file per
// table. Headers are validated against the expected schema and cells are
// trimmed before parsing.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/trialstats/trialstats/internal/domain/study"
)

// File names the loader expects under the data directory.
const (
	BaselineFile      = "baseline.csv"
	Week13File        = "week13.csv"
	Week32File        = "week32.csv"
	AdverseEventsFile = "adverse_events.csv"
)

// DateLayout is the date format used across the dataset files.
const DateLayout = "2006-01-02"

var (
	baselineHeader = []string{"participant_id", "dob", "enrollment_date", "sex", "race",
		"treatment_group", "baseline_hscrp", "baseline_fibrinogen", "baseline_saa",
		"baseline_ecg", "baseline_sbp", "baseline_dbp"}
	week13Header = []string{"participant_id", "wk13_hscrp", "wk13_fibrinogen", "wk13_saa"}
	week32Header = []string{"participant_id", "treatment_group", "completion_status",
		"reason_notcomplete", "site_name", "wk32_ecg", "wk32_sbp", "wk32_dbp"}
	adverseHeader = []string{"treatment_group", "ae_type", "sae_type"}
)

// Loader reads the four snapshot files from one directory. It implements
// study.Repository.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Snapshot reads and parses all four tables.
func (l *Loader) Snapshot(_ context.Context) (*study.Snapshot, error) {
	snap := &study.Snapshot{}

	if err := l.readFile(BaselineFile, baselineHeader, func(row []string, line int) error {
		b, err := parseBaseline(row)
		if err != nil {
			return err
		}
		snap.Baseline = append(snap.Baseline, b)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := l.readFile(Week13File, week13Header, func(row []string, line int) error {
		w, err := parseWeek13(row)
		if err != nil {
			return err
		}
		snap.Week13 = append(snap.Week13, w)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := l.readFile(Week32File, week32Header, func(row []string, line int) error {
		w, err := parseWeek32(row)
		if err != nil {
			return err
		}
		snap.Week32 = append(snap.Week32, w)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := l.readFile(AdverseEventsFile, adverseHeader, func(row []string, line int) error {
		snap.AdverseEvents = append(snap.AdverseEvents, study.AdverseEvent{
			TreatmentGroup: row[0],
			AEType:         row[1],
			SAEType:        row[2],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	return snap, nil
}

func (l *Loader) readFile(name string, header []string, handle func(row []string, line int) error) error {
	path := filepath.Join(l.dir, name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if err := readRows(f, header, handle); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// readRows parses CSV content, validates the header, trims every cell and
// hands each data row to handle with its 1-based line number.
func readRows(r io.Reader, header []string, handle func(row []string, line int) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	got, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for i := range got {
		got[i] = strings.TrimSpace(got[i])
	}
	for i, want := range header {
		if !strings.EqualFold(got[i], want) {
			return fmt.Errorf("header column %d: got %q, want %q", i+1, got[i], want)
		}
	}

	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line+1, err)
		}
		line++
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		if err := handle(row, line); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func parseBaseline(row []string) (study.Baseline, error) {
	b := study.Baseline{
		ParticipantID:  row[0],
		Sex:            row[3],
		Race:           row[4],
		TreatmentGroup: row[5],
		ECG:            row[9],
	}
	if b.ParticipantID == "" {
		return b, fmt.Errorf("empty participant_id")
	}
	var err error
	if b.DOB, err = parseDate(row[1]); err != nil {
		return b, fmt.Errorf("dob: %w", err)
	}
	if b.EnrollmentDate, err = parseDate(row[2]); err != nil {
		return b, fmt.Errorf("enrollment_date: %w", err)
	}
	if b.HsCRP, err = parseOptFloat(row[6]); err != nil {
		return b, fmt.Errorf("baseline_hscrp: %w", err)
	}
	if b.Fibrinogen, err = parseOptFloat(row[7]); err != nil {
		return b, fmt.Errorf("baseline_fibrinogen: %w", err)
	}
	if b.SAA, err = parseOptFloat(row[8]); err != nil {
		return b, fmt.Errorf("baseline_saa: %w", err)
	}
	if b.SBP, err = parseOptFloat(row[10]); err != nil {
		return b, fmt.Errorf("baseline_sbp: %w", err)
	}
	if b.DBP, err = parseOptFloat(row[11]); err != nil {
		return b, fmt.Errorf("baseline_dbp: %w", err)
	}
	return b, nil
}

func parseWeek13(row []string) (study.Week13, error) {
	w := study.Week13{ParticipantID: row[0]}
	if w.ParticipantID == "" {
		return w, fmt.Errorf("empty participant_id")
	}
	var err error
	if w.HsCRP, err = parseOptFloat(row[1]); err != nil {
		return w, fmt.Errorf("wk13_hscrp: %w", err)
	}
	if w.Fibrinogen, err = parseOptFloat(row[2]); err != nil {
		return w, fmt.Errorf("wk13_fibrinogen: %w", err)
	}
	if w.SAA, err = parseOptFloat(row[3]); err != nil {
		return w, fmt.Errorf("wk13_saa: %w", err)
	}
	return w, nil
}

func parseWeek32(row []string) (study.Week32, error) {
	w := study.Week32{
		ParticipantID:     row[0],
		TreatmentGroup:    row[1],
		CompletionStatus:  row[2],
		ReasonNotComplete: row[3],
		SiteName:          row[4],
		ECG:               row[5],
	}
	if w.ParticipantID == "" {
		return w, fmt.Errorf("empty participant_id")
	}
	var err error
	if w.SBP, err = parseOptFloat(row[6]); err != nil {
		return w, fmt.Errorf("wk32_sbp: %w", err)
	}
	if w.DBP, err = parseOptFloat(row[7]); err != nil {
		return w, fmt.Errorf("wk32_dbp: %w", err)
	}
	return w, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
