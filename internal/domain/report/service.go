package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trialstats/trialstats/internal/domain/study"
)

// Service evaluates report measures over a study snapshot. The snapshot is
// loaded and prepared once per call; measures are independent read-only
// derivations, so a failing measure is recorded and the rest still run.
type Service struct {
	repo   study.Repository
	logger zerolog.Logger
}

func NewService(repo study.Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) snapshot(ctx context.Context) (*study.Snapshot, error) {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return study.Prepare(snap), nil
}

// Evaluate runs a single measure by ID.
func (s *Service) Evaluate(ctx context.Context, measureID string) (*MeasureResult, error) {
	m := FindMeasure(measureID)
	if m == nil {
		return nil, fmt.Errorf("unknown measure: %s", measureID)
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := evaluateMeasure(measureID, snap)
	if err != nil {
		return nil, err
	}
	return &MeasureResult{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
	}, nil
}

func evaluateMeasure(id string, snap *study.Snapshot) (interface{}, error) {
	switch id {
	case "enrollment":
		return EnrollmentByArm(snap), nil
	case "age-stats":
		return AgeStatsByArm(snap), nil
	case "age-stats-sex":
		return AgeStatsByArmSex(snap), nil
	case "age-bands":
		return AgeBandsByArm(snap), nil
	case "race":
		return RaceByArm(snap), nil
	case "completion-arm":
		return CompletionByArm(snap), nil
	case "completion-arm-sex":
		return CompletionByArmSex(snap), nil
	case "completion-site":
		return CompletionBySite(snap), nil
	case "dropout-reasons":
		return DropoutReasons(snap), nil
	case "biomarker-change":
		return BiomarkerChange(snap), nil
	case "bp-change":
		return BloodPressureChange(snap), nil
	case "ecg-effect":
		return ECGEffectByArm(snap), nil
	case "adverse-events":
		return append(AdverseEventCounts(snap), SeriousAdverseEventCounts(snap)...), nil
	default:
		return nil, fmt.Errorf("unknown measure: %s", id)
	}
}

// Full evaluates every measure over one snapshot. Panics inside a measure
// are caught and recorded in Report.Errors so the remaining measures still
// run; a disagreement between the two completion methods is recorded the
// same way.
func (s *Service) Full(ctx context.Context) (*Report, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{GeneratedAt: time.Now().UTC()}

	s.safely(r, "enrollment", func() { r.Enrollment = EnrollmentByArm(snap) })
	s.safely(r, "age-stats", func() { r.AgeStatsByArm = AgeStatsByArm(snap) })
	s.safely(r, "age-stats-sex", func() { r.AgeStatsByArmSex = AgeStatsByArmSex(snap) })
	s.safely(r, "age-bands", func() { r.AgeBands = AgeBandsByArm(snap) })
	s.safely(r, "race", func() { r.Race = RaceByArm(snap) })
	s.safely(r, "completion-arm", func() { r.CompletionByArm = CompletionByArm(snap) })
	s.safely(r, "completion-arm-sex", func() { r.CompletionByArmSex = CompletionByArmSex(snap) })
	s.safely(r, "completion-site", func() { r.CompletionBySite = CompletionBySite(snap) })
	s.safely(r, "dropout-reasons", func() { r.DropoutReasons = DropoutReasons(snap) })
	s.safely(r, "biomarker-change", func() { r.BiomarkerChange = BiomarkerChange(snap) })
	s.safely(r, "bp-change", func() { r.BloodPressureChange = BloodPressureChange(snap) })
	s.safely(r, "ecg-effect", func() { r.ECGEffect = ECGEffectByArm(snap) })
	s.safely(r, "adverse-events", func() {
		r.AdverseEvents = AdverseEventCounts(snap)
		r.SeriousAdverseEvents = SeriousAdverseEventCounts(snap)
	})

	for _, c := range r.CompletionByArm {
		if c.WindowPercent != c.ConditionalPercent {
			msg := fmt.Sprintf("completion-arm: methods disagree for %s: window=%.1f conditional=%.1f",
				c.TreatmentGroup, c.WindowPercent, c.ConditionalPercent)
			s.logger.Error().Str("treatment_group", c.TreatmentGroup).Msg(msg)
			r.Errors = append(r.Errors, msg)
		}
	}

	return r, nil
}

func (s *Service) safely(r *Report, measureID string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("%s: %v", measureID, rec)
			s.logger.Error().Str("measure", measureID).Interface("panic", rec).Msg("measure failed")
			r.Errors = append(r.Errors, msg)
		}
	}()
	fn()
}
