package port

import "mammo-vision/internal/domain/entity"

// SaliencyMapper строит тепловую карту по активациям и градиентам.
type SaliencyMapper interface {
	Compute(features, gradients *entity.FeatureMap) (*entity.Heatmap, error)
}
