package report

import (
	"strings"

	"github.com/trialstats/trialstats/internal/domain/study"
)

// ECGEffect is the classified baseline-to-week-32 ECG transition.
type ECGEffect string

const (
	EffectPositive ECGEffect = "Positive"
	EffectNegative ECGEffect = "Negative"
	EffectNoChange ECGEffect = "No Change"
	EffectOther    ECGEffect = "Other"
)

// ecgEffects lists the effect values in presentation order.
var ecgEffects = []ECGEffect{EffectPositive, EffectNegative, EffectNoChange, EffectOther}

// ClassifyECGEffect maps a (baseline, week-32) ECG reading pair onto exactly
// one effect. Rules are priority ordered; the first match wins:
//
//  1. Positive: any abnormal baseline normalizes, or a clinically
//     significant abnormality downgrades to not clinically significant.
//  2. Negative: a normal baseline turns abnormal, or a not clinically
//     significant abnormality upgrades to clinically significant.
//  3. No Change: both sides read the same.
//  4. Other: everything else, including indeterminate or non-evaluable
//     readings on either side.
func ClassifyECGEffect(baseline, week32 string) ECGEffect {
	b := study.ParseECG(baseline)
	w := study.ParseECG(week32)

	switch {
	case b.IsAbnormal() && w == study.ECGNormal:
		return EffectPositive
	case b == study.ECGAbnormalCS && w == study.ECGAbnormalNS:
		return EffectPositive
	case b == study.ECGNormal && w.IsAbnormal():
		return EffectNegative
	case b == study.ECGAbnormalNS && w == study.ECGAbnormalCS:
		return EffectNegative
	case b != study.ECGUnknown && b == w:
		return EffectNoChange
	case strings.TrimSpace(baseline) == strings.TrimSpace(week32):
		// Values outside the known domain still count as unchanged when
		// the recorded text is identical.
		return EffectNoChange
	default:
		return EffectOther
	}
}
