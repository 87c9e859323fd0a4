package app

import (
	"image"

	"mammo-vision/internal/domain/entity"
	"mammo-vision/internal/domain/port"
)

const (
	// ROIThreshold порог бинаризации тепловой карты (строго выше)
	ROIThreshold = 0.5
	// FallbackProbability вероятность, начиная с которой при отсутствии
	// очага отмечается центральная область кадра
	FallbackProbability = 0.2
)

// ROIExtractor выбирает подозрительную область в кадре тепловой карты.
type ROIExtractor struct {
	finder    port.RegionFinder
	inputSize int
}

// NewROIExtractor создаёт экстрактор для кадра inputSize×inputSize.
func NewROIExtractor(finder port.RegionFinder, inputSize int) *ROIExtractor {
	return &ROIExtractor{finder: finder, inputSize: inputSize}
}

// Extract возвращает рамку крупнейшей области карты выше порога; если её нет,
// а p >= FallbackProbability, то центральный квадрат со стороной в половину
// кадра; иначе nil.
func (e *ROIExtractor) Extract(heatmap *entity.Heatmap, p float64) *entity.BoundingBox {
	if heatmap != nil && e.finder != nil {
		if box, ok := e.finder.LargestRegion(heatmap, ROIThreshold); ok && box != nil {
			frame := image.Rect(0, 0, heatmap.Width, heatmap.Height)
			clipped := box.Rect().Intersect(frame)
			if !clipped.Empty() {
				return &entity.BoundingBox{
					X:      clipped.Min.X,
					Y:      clipped.Min.Y,
					Width:  clipped.Dx(),
					Height: clipped.Dy(),
				}
			}
		}
	}
	if p >= FallbackProbability {
		return CenteredBox(e.inputSize)
	}
	return nil
}

// CenteredBox квадрат со стороной size/2 в центре кадра size×size.
func CenteredBox(size int) *entity.BoundingBox {
	return &entity.BoundingBox{X: size / 4, Y: size / 4, Width: size / 2, Height: size / 2}
}
