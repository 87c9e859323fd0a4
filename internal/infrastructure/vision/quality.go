//go:build gocv
// +build gocv

package vision

import (
	"context"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"mammo-vision/internal/domain/entity"
)

// QualityInspector считает метрики пригодности снимка.
type QualityInspector struct {
	OverexposedLevel  float32
	UnderexposedLevel float32
	GlareSaturation   float32
	GlareValue        float32
}

// NewQualityInspector создаёт инспектор с порогами по умолчанию.
func NewQualityInspector() *QualityInspector {
	return &QualityInspector{
		OverexposedLevel:  250,
		UnderexposedLevel: 20,
		GlareSaturation:   40,
		GlareValue:        245,
	}
}

// Assess возвращает оценку качества 0..100 вместе с сырыми метриками.
func (q *QualityInspector) Assess(ctx context.Context, imageData []byte) (*entity.QualityScore, error) {
	_ = ctx
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	m := entity.QualityMetrics{
		MinSide: minInt(mat.Cols(), mat.Rows()),
	}

	_, m.Contrast = meanStdDev(gray)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)
	_, lapStd := meanStdDev(lap)
	m.Sharpness = lapStd * lapStd

	m.HistogramSpread = histogramSpread(gray)

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, q.OverexposedLevel, 255, gocv.ThresholdBinary)
	m.OverexposedRatio = ratioOfMask(bright)

	dark := gocv.NewMat()
	defer dark.Close()
	gocv.Threshold(gray, &dark, q.UnderexposedLevel, 255, gocv.ThresholdBinaryInv)
	m.UnderexposedRatio = ratioOfMask(dark)

	m.GlareRatio = q.glareRatio(mat)

	score := m.Score()
	return &score, nil
}

// glareRatio доля ярких малонасыщенных пикселей. Для чисто серых снимков
// насыщенность нулевая, поэтому блик совпадает с пересветом.
func (q *QualityInspector) glareRatio(mat gocv.Mat) float64 {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(mat, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	for i := range channels {
		defer channels[i].Close()
	}
	if len(channels) < 3 {
		return 0
	}

	lowSat := gocv.NewMat()
	defer lowSat.Close()
	gocv.Threshold(channels[1], &lowSat, q.GlareSaturation, 255, gocv.ThresholdBinaryInv)

	highVal := gocv.NewMat()
	defer highVal.Close()
	gocv.Threshold(channels[2], &highVal, q.GlareValue, 255, gocv.ThresholdBinary)

	glare := gocv.NewMat()
	defer glare.Close()
	gocv.BitwiseAnd(lowSat, highVal, &glare)
	return ratioOfMask(glare)
}

// histogramSpread разница 99-го и 1-го перцентилей яркости.
func histogramSpread(gray gocv.Mat) float64 {
	hist := gocv.NewMat()
	defer hist.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.CalcHist([]gocv.Mat{gray}, []int{0}, mask, &hist, []int{256}, []float64{0, 256}, false)

	levels := make([]float64, 256)
	weights := make([]float64, 256)
	total := 0.0
	for i := range levels {
		levels[i] = float64(i)
		weights[i] = float64(hist.GetFloatAt(i, 0))
		total += weights[i]
	}
	if total == 0 {
		return 0
	}
	return stat.Quantile(0.99, stat.Empirical, levels, weights) -
		stat.Quantile(0.01, stat.Empirical, levels, weights)
}

func meanStdDev(src gocv.Mat) (mean, stddev float64) {
	meanMat := gocv.NewMat()
	defer meanMat.Close()
	stdMat := gocv.NewMat()
	defer stdMat.Close()
	gocv.MeanStdDev(src, &meanMat, &stdMat)
	return meanMat.GetDoubleAt(0, 0), stdMat.GetDoubleAt(0, 0)
}

func ratioOfMask(mask gocv.Mat) float64 {
	total := mask.Cols() * mask.Rows()
	if total <= 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}
