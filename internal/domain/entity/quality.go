package entity

import "math"

// QualityMetrics сырые метрики пригодности снимка к анализу.
type QualityMetrics struct {
	Contrast          float64 `json:"contrast"`           // СКО яркости, 0..127
	Sharpness         float64 `json:"sharpness"`          // дисперсия лапласиана
	HistogramSpread   float64 `json:"histogram_spread"`   // p99 - p1 яркости, 0..255
	MinSide           int     `json:"min_side"`           // меньшая сторона в пикселях
	OverexposedRatio  float64 `json:"overexposed_ratio"`  // доля пикселей > 250
	UnderexposedRatio float64 `json:"underexposed_ratio"` // доля пикселей < 20
	GlareRatio        float64 `json:"glare_ratio"`        // доля бликов
}

// QualityScore итоговая оценка 0..100 и метрики, из которых она получена.
type QualityScore struct {
	Score   float64        `json:"score"`
	Metrics QualityMetrics `json:"metrics"`
}

const (
	contrastWeight   = 25.0
	sharpnessWeight  = 25.0
	spreadWeight     = 20.0
	resolutionWeight = 15.0
	artifactWeight   = 15.0

	goodContrast   = 50.0
	goodSharpness  = 100.0
	goodSpread     = 200.0
	goodResolution = 1024.0

	maxOverexposed = 0.35
	maxGlare       = 0.08
	// Маммограмма по природе наполовину состоит из тёмного фона,
	// штрафуем только то, что сверх него.
	backgroundUnderexposed = 0.6
	maxUnderexposed        = 0.95
)

// Score сворачивает метрики в оценку 0..100.
func (m QualityMetrics) Score() QualityScore {
	score := contrastWeight*clamp01(m.Contrast/goodContrast) +
		sharpnessWeight*clamp01(m.Sharpness/goodSharpness) +
		spreadWeight*clamp01(m.HistogramSpread/goodSpread) +
		resolutionWeight*clamp01(float64(m.MinSide)/goodResolution)

	penalty := math.Max(m.OverexposedRatio/maxOverexposed, m.GlareRatio/maxGlare)
	under := (m.UnderexposedRatio - backgroundUnderexposed) / (maxUnderexposed - backgroundUnderexposed)
	penalty = clamp01(math.Max(penalty, under))
	score += artifactWeight * (1 - penalty)

	return QualityScore{Score: math.Round(score*10) / 10, Metrics: m}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
