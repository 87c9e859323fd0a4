//go:build gocv
// +build gocv

package vision

import (
	"gocv.io/x/gocv"

	"mammo-vision/internal/domain/entity"
)

// ContourRegionFinder ищет области тепловой карты через внешние контуры OpenCV.
type ContourRegionFinder struct{}

// NewContourRegionFinder создаёт поисковик областей
func NewContourRegionFinder() *ContourRegionFinder {
	return &ContourRegionFinder{}
}

// LargestRegion бинаризует карту (строго выше threshold) и возвращает
// описанный прямоугольник контура наибольшей площади.
func (f *ContourRegionFinder) LargestRegion(heatmap *entity.Heatmap, threshold float64) (*entity.BoundingBox, bool) {
	if heatmap == nil || heatmap.Width == 0 || heatmap.Height == 0 {
		return nil, false
	}

	buf := make([]byte, heatmap.Width*heatmap.Height)
	for i, v := range heatmap.Values {
		if v > threshold {
			buf[i] = 255
		}
	}
	mask, err := gocv.NewMatFromBytes(heatmap.Height, heatmap.Width, gocv.MatTypeCV8U, buf)
	if err != nil {
		return nil, false
	}
	defer mask.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	idx := largestContour(contours)
	if idx < 0 {
		return nil, false
	}
	rect := gocv.BoundingRect(contours.At(idx))
	return &entity.BoundingBox{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}, true
}
