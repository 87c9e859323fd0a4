package vision

import (
	"image"

	"mammo-vision/internal/domain/entity"
)

const (
	// Эллиптическое ядро морфологии маски ткани
	TissueKernelSize = 15
	// Запас вокруг найденной ткани, доля от ширины и высоты
	TissuePadding = 0.1
	// Параметры CLAHE
	CLAHEClipLimit = 3.0
	CLAHETileGrid  = 8
)

// PadCrop расширяет прямоугольник ткани на TissuePadding с каждой стороны и
// обрезает результат по границам изображения width×height.
func PadCrop(rect image.Rectangle, width, height int) entity.CropRect {
	w, h := rect.Dx(), rect.Dy()
	padW := int(float64(w) * TissuePadding)
	padH := int(float64(h) * TissuePadding)

	x := maxInt(0, rect.Min.X-padW)
	y := maxInt(0, rect.Min.Y-padH)
	return entity.CropRect{
		X:      x,
		Y:      y,
		Width:  maxInt(0, minInt(width-x, w+2*padW)),
		Height: maxInt(0, minInt(height-y, h+2*padH)),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
