package entity

import (
	"fmt"
	"image"
)

// InputImage вход классификатора: квадрат Size×Size, три канала RGB, значения в [0,1].
type InputImage struct {
	Size   int       // сторона квадрата
	Pixels []float32 // раскладка HWC, len = Size*Size*3
}

// NewInputImage выделяет пустой вход классификатора
func NewInputImage(size int) *InputImage {
	return &InputImage{Size: size, Pixels: make([]float32, size*size*3)}
}

// FeatureMap активации промежуточного слоя (H×W×C), того же вида градиенты.
type FeatureMap struct {
	Height   int
	Width    int
	Channels int
	Data     []float32 // раскладка HWC
}

// NewFeatureMap выделяет карту признаков заданной формы
func NewFeatureMap(height, width, channels int) *FeatureMap {
	return &FeatureMap{
		Height:   height,
		Width:    width,
		Channels: channels,
		Data:     make([]float32, height*width*channels),
	}
}

// At значение канала c в ячейке (y, x)
func (f *FeatureMap) At(y, x, c int) float32 {
	return f.Data[(y*f.Width+x)*f.Channels+c]
}

// Set записывает значение канала c в ячейке (y, x)
func (f *FeatureMap) Set(y, x, c int, v float32) {
	f.Data[(y*f.Width+x)*f.Channels+c] = v
}

// SameShape сравнивает форму двух карт
func (f *FeatureMap) SameShape(o *FeatureMap) bool {
	return o != nil && f.Height == o.Height && f.Width == o.Width && f.Channels == o.Channels
}

// Validate проверяет согласованность формы и данных
func (f *FeatureMap) Validate() error {
	if f.Height <= 0 || f.Width <= 0 || f.Channels <= 0 {
		return fmt.Errorf("invalid feature map shape %dx%dx%d", f.Height, f.Width, f.Channels)
	}
	if len(f.Data) != f.Height*f.Width*f.Channels {
		return fmt.Errorf("feature map data length %d does not match shape %dx%dx%d",
			len(f.Data), f.Height, f.Width, f.Channels)
	}
	return nil
}

// Heatmap карта значимости в кадре входа классификатора, значения в [0,1].
type Heatmap struct {
	Width  int
	Height int
	Values []float64 // построчно, len = Width*Height
}

// At значение в точке (x, y)
func (h *Heatmap) At(x, y int) float64 {
	return h.Values[y*h.Width+x]
}

// Inference результат одного прямого прохода классификатора.
type Inference struct {
	Probability float64     // вероятность злокачественности
	Features    *FeatureMap // активации выделенного слоя
	Gradients   *FeatureMap // d(Probability)/d(Features), nil если недоступны
}

// PreparedScan снимок после локализации ткани и выравнивания контраста.
type PreparedScan struct {
	SourceWidth  int
	SourceHeight int
	Crop         CropRect
	Input        *InputImage
	Display      image.Image // обрезка, приведённая к кадру классификатора
}
