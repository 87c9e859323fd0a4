//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"mammo-vision/internal/domain/entity"
	apperrors "mammo-vision/internal/errors"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

// Preprocessor заглушка без OpenCV.
type Preprocessor struct{}

// NewPreprocessor создаёт препроцессор-заглушку
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// Prepare возвращает ошибку, если сборка без тега gocv.
func (p *Preprocessor) Prepare(ctx context.Context, imageData []byte, inputSize int) (*entity.PreparedScan, error) {
	_ = ctx
	_ = imageData
	_ = inputSize
	return nil, apperrors.NewResourceUnavailableError("opencv", errNoGoCV)
}

// QualityInspector заглушка без OpenCV.
type QualityInspector struct{}

// NewQualityInspector создаёт инспектор-заглушку
func NewQualityInspector() *QualityInspector {
	return &QualityInspector{}
}

// Assess возвращает ошибку, если сборка без тега gocv.
func (q *QualityInspector) Assess(ctx context.Context, imageData []byte) (*entity.QualityScore, error) {
	_ = ctx
	_ = imageData
	return nil, apperrors.NewResourceUnavailableError("opencv", errNoGoCV)
}

// ContourRegionFinder заглушка без OpenCV: контуров не находит никогда.
type ContourRegionFinder struct{}

// NewContourRegionFinder создаёт поисковик-заглушку
func NewContourRegionFinder() *ContourRegionFinder {
	return &ContourRegionFinder{}
}

// LargestRegion без OpenCV всегда сообщает об отсутствии области.
func (f *ContourRegionFinder) LargestRegion(heatmap *entity.Heatmap, threshold float64) (*entity.BoundingBox, bool) {
	_ = heatmap
	_ = threshold
	return nil, false
}
