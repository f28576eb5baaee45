package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/trialstats/trialstats/internal/domain/study"
)

// WriteCSV writes a snapshot into dir as the four files the Loader reads
// back. Existing files are overwritten.
func WriteCSV(dir string, snap *study.Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	baseline := [][]string{baselineHeader}
	for _, b := range snap.Baseline {
		baseline = append(baseline, []string{
			b.ParticipantID,
			b.DOB.Format(DateLayout),
			b.EnrollmentDate.Format(DateLayout),
			b.Sex, b.Race, b.TreatmentGroup,
			formatOptFloat(b.HsCRP), formatOptFloat(b.Fibrinogen), formatOptFloat(b.SAA),
			b.ECG,
			formatOptFloat(b.SBP), formatOptFloat(b.DBP),
		})
	}
	if err := writeFile(dir, BaselineFile, baseline); err != nil {
		return err
	}

	week13 := [][]string{week13Header}
	for _, w := range snap.Week13 {
		week13 = append(week13, []string{
			w.ParticipantID,
			formatOptFloat(w.HsCRP), formatOptFloat(w.Fibrinogen), formatOptFloat(w.SAA),
		})
	}
	if err := writeFile(dir, Week13File, week13); err != nil {
		return err
	}

	week32 := [][]string{week32Header}
	for _, w := range snap.Week32 {
		week32 = append(week32, []string{
			w.ParticipantID, w.TreatmentGroup, w.CompletionStatus,
			w.ReasonNotComplete, w.SiteName, w.ECG,
			formatOptFloat(w.SBP), formatOptFloat(w.DBP),
		})
	}
	if err := writeFile(dir, Week32File, week32); err != nil {
		return err
	}

	adverse := [][]string{adverseHeader}
	for _, a := range snap.AdverseEvents {
		adverse = append(adverse, []string{a.TreatmentGroup, a.AEType, a.SAEType})
	}
	return writeFile(dir, AdverseEventsFile, adverse)
}

func writeFile(dir, name string, rows [][]string) error {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
