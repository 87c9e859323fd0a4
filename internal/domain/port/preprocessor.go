package port

import (
	"context"

	"mammo-vision/internal/domain/entity"
)

// ScanPreprocessor локализует ткань, выравнивает контраст и готовит вход классификатора.
type ScanPreprocessor interface {
	Prepare(ctx context.Context, imageData []byte, inputSize int) (*entity.PreparedScan, error)
}

// QualityInspector оценивает пригодность снимка к анализу.
type QualityInspector interface {
	Assess(ctx context.Context, imageData []byte) (*entity.QualityScore, error)
}

// RegionFinder ищет крупнейшую связную область тепловой карты выше порога.
type RegionFinder interface {
	LargestRegion(heatmap *entity.Heatmap, threshold float64) (*entity.BoundingBox, bool)
}
