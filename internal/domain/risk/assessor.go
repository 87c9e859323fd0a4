// Package risk переводит вероятность злокачественности в уровень риска,
// категорию BI-RADS и рекомендацию. Три шкалы настроены независимо друг
// от друга, их пороги не совпадают и не должны объединяться.
package risk

import "mammo-vision/internal/domain/entity"

// DecisionThreshold порог бинарной метки: MALIGNANT строго выше.
const DecisionThreshold = 0.5

type band struct {
	min        float64
	level      entity.RiskLevel
	assessment string
}

var riskBands = []band{
	{0.8, entity.RiskHigh, "Strongly suspicious for malignancy"},
	{0.6, entity.RiskModerateHigh, "Suspicious findings, recommend biopsy"},
	{0.4, entity.RiskModerate, "Indeterminate findings, close follow-up"},
	{0.2, entity.RiskLowModerate, "Probably benign, routine follow-up"},
}

type step struct {
	min  float64
	text string
}

var biradsSteps = []step{
	{0.95, "BI-RADS 5 - Highly suggestive of malignancy (>95%)"},
	{0.75, "BI-RADS 4C - High suspicion (50-95%)"},
	{0.5, "BI-RADS 4B - Moderate suspicion (10-50%)"},
	{0.2, "BI-RADS 4A - Low suspicion (2-10%)"},
	{0.02, "BI-RADS 3 - Probably benign (<2%)"},
}

const biradsBenign = "BI-RADS 2 - Benign finding"

var recommendationSteps = []step{
	{0.75, "Urgent tissue diagnosis (biopsy)"},
	{0.5, "Biopsy recommended for definitive diagnosis"},
	{0.3, "Short-term follow-up (3-6 months) or consider biopsy"},
	{0.1, "Routine follow-up in 6-12 months"},
}

const recommendationScreening = "Continue routine screening"

// Level возвращает уровень риска и клиническую оценку.
func Level(p float64) (entity.RiskLevel, string) {
	for _, b := range riskBands {
		if p >= b.min {
			return b.level, b.assessment
		}
	}
	return entity.RiskLow, "Benign findings"
}

// BIRADS возвращает эквивалентную категорию BI-RADS.
func BIRADS(p float64) string {
	return pick(biradsSteps, p, biradsBenign)
}

// Recommendation возвращает клиническую рекомендацию.
func Recommendation(p float64) string {
	return pick(recommendationSteps, p, recommendationScreening)
}

func pick(steps []step, p float64, fallback string) string {
	for _, s := range steps {
		if p >= s.min {
			return s.text
		}
	}
	return fallback
}

// Label бинарная метка; на границе p == 0.5 метка BENIGN.
func Label(p float64) entity.Label {
	if p > DecisionThreshold {
		return entity.LabelMalignant
	}
	return entity.LabelBenign
}

// Confidence уверенность в выбранной метке.
func Confidence(p float64) float64 {
	if p > DecisionThreshold {
		return p
	}
	return 1 - p
}

// Rank порядковый номер уровня риска, 0 для LOW RISK.
func Rank(level entity.RiskLevel) int {
	for i, b := range riskBands {
		if b.level == level {
			return len(riskBands) - i
		}
	}
	return 0
}

// Assess собирает диагностическое заключение по вероятности.
func Assess(p float64) entity.DiagnosticReport {
	level, assessment := Level(p)
	return entity.DiagnosticReport{
		PrimaryDiagnosis:      Label(p),
		MalignancyProbability: p,
		BenignProbability:     1 - p,
		Confidence:            Confidence(p),
		RiskLevel:             level,
		ClinicalAssessment:    assessment,
		BIRADS:                BIRADS(p),
		Recommendation:        Recommendation(p),
	}
}
