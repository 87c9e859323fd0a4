package entity

import (
	"fmt"
	"strings"
	"time"
)

// Label итоговая метка классификации
type Label string

const (
	LabelMalignant Label = "MALIGNANT"
	LabelBenign    Label = "BENIGN"
)

// RiskLevel уровень риска по вероятности злокачественности
type RiskLevel string

const (
	RiskHigh         RiskLevel = "HIGH RISK"
	RiskModerateHigh RiskLevel = "MODERATE-HIGH RISK"
	RiskModerate     RiskLevel = "MODERATE RISK"
	RiskLowModerate  RiskLevel = "LOW-MODERATE RISK"
	RiskLow          RiskLevel = "LOW RISK"
)

// DiagnosticReport диагностическое заключение. Передаётся по значению и после
// сборки не меняется.
type DiagnosticReport struct {
	PrimaryDiagnosis      Label     `json:"primary_diagnosis"`
	MalignancyProbability float64   `json:"malignancy_probability"`
	BenignProbability     float64   `json:"benign_probability"`
	Confidence            float64   `json:"confidence"`
	RiskLevel             RiskLevel `json:"risk_level"`
	ClinicalAssessment    string    `json:"clinical_assessment"`
	BIRADS                string    `json:"birads_equivalent"`
	Recommendation        string    `json:"recommendation"`
}

// Markdown форматирует заключение как читаемый текст анализа.
func (r DiagnosticReport) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Primary Diagnosis: %s\n\n", r.PrimaryDiagnosis)
	b.WriteString("### Probabilities\n")
	fmt.Fprintf(&b, "- **Malignancy:** %s\n", Percent(r.MalignancyProbability))
	fmt.Fprintf(&b, "- **Benign:** %s\n", Percent(r.BenignProbability))
	fmt.Fprintf(&b, "- **Confidence:** %s\n\n", Percent(r.Confidence))
	b.WriteString("### Risk Assessment\n")
	fmt.Fprintf(&b, "**Risk Level:** %s\n\n", r.RiskLevel)
	fmt.Fprintf(&b, "**Clinical Assessment:** %s\n\n", r.ClinicalAssessment)
	b.WriteString("### BI-RADS Equivalent\n")
	fmt.Fprintf(&b, "%s\n\n", r.BIRADS)
	b.WriteString("### Clinical Recommendation\n")
	fmt.Fprintf(&b, "%s\n\n", r.Recommendation)
	b.WriteString("---\n\n")
	b.WriteString("**IMPORTANT:** this analysis is produced by a trained model and is a decision-support tool only. ")
	b.WriteString("It does NOT replace the diagnosis of a qualified radiologist.")
	return b.String()
}

// Percent форматирует долю как процент с одним знаком
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// PredictionResult ответ конвейера анализа для внешнего слоя.
type PredictionResult struct {
	ID                string           `json:"id"`
	Source            string           `json:"source,omitempty"`
	Success           bool             `json:"success"`
	Prediction        Label            `json:"prediction"`
	Probability       float64          `json:"probability"`
	Confidence        float64          `json:"confidence"`
	DiagnosticReport  DiagnosticReport `json:"diagnostic_report"`
	BBox              *BoundingBox     `json:"bbox"`
	VisualizationPath *string          `json:"visualization_path"`
	Crop              CropRect         `json:"crop"`
	HeatmapAvailable  bool             `json:"heatmap_available"`
	Quality           *QualityScore    `json:"quality,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// BatchItem результат анализа одного файла из пакета
type BatchItem struct {
	Source string            `json:"source"`
	Result *PredictionResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Clone глубокая копия: указатели на рамку, путь и качество не разделяются.
func (r *PredictionResult) Clone() *PredictionResult {
	out := *r
	if r.BBox != nil {
		box := *r.BBox
		out.BBox = &box
	}
	if r.VisualizationPath != nil {
		path := *r.VisualizationPath
		out.VisualizationPath = &path
	}
	if r.Quality != nil {
		q := *r.Quality
		out.Quality = &q
	}
	return &out
}
