// Package saliency строит карту значимости Grad-CAM по активациям и градиентам
// классификатора.
package saliency

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"mammo-vision/internal/domain/entity"
	apperrors "mammo-vision/internal/errors"
)

// Epsilon защищает нормировку от деления на ноль на пустой карте.
const Epsilon = 1e-10

// GradCAM считает тепловую карту в разрешении входа классификатора.
type GradCAM struct {
	InputSize int
	Layer     string
}

// NewGradCAM создаёт построитель карты для входа inputSize×inputSize.
func NewGradCAM(inputSize int, layer string) *GradCAM {
	return &GradCAM{InputSize: inputSize, Layer: layer}
}

// Compute строит тепловую карту. Любая ошибка имеет код SALIENCY_UNAVAILABLE,
// вызывающая сторона продолжает анализ без карты.
func (g *GradCAM) Compute(features, gradients *entity.FeatureMap) (*entity.Heatmap, error) {
	coarse, err := g.Coarse(features, gradients)
	if err != nil {
		return nil, err
	}
	values := Upsample(coarse, features.Width, features.Height, g.InputSize)
	return &entity.Heatmap{Width: g.InputSize, Height: g.InputSize, Values: values}, nil
}

// Coarse возвращает нормированную карту в разрешении слоя признаков (построчно).
func (g *GradCAM) Coarse(features, gradients *entity.FeatureMap) ([]float64, error) {
	if features == nil || gradients == nil {
		return nil, apperrors.NewSaliencyUnavailableError(g.Layer, errors.New("no gradients"))
	}
	if err := features.Validate(); err != nil {
		return nil, apperrors.NewSaliencyUnavailableError(g.Layer, err)
	}
	if !features.SameShape(gradients) || gradients.Validate() != nil {
		return nil, apperrors.NewSaliencyUnavailableError(g.Layer, fmt.Errorf(
			"gradient shape %dx%dx%d does not match features %dx%dx%d",
			gradients.Height, gradients.Width, gradients.Channels,
			features.Height, features.Width, features.Channels))
	}
	if features.Height >= g.InputSize || features.Width >= g.InputSize {
		return nil, apperrors.NewSaliencyUnavailableError(g.Layer, fmt.Errorf(
			"feature map %dx%d is not coarser than input %d", features.Height, features.Width, g.InputSize))
	}

	cells := features.Height * features.Width
	acts := mat.NewDense(cells, features.Channels, toFloat64(features.Data))
	grads := mat.NewDense(cells, gradients.Channels, toFloat64(gradients.Data))

	// Вес канала: средний по пространству градиент.
	weights := mat.NewVecDense(features.Channels, nil)
	col := make([]float64, cells)
	for c := 0; c < features.Channels; c++ {
		mat.Col(col, c, grads)
		weights.SetVec(c, stat.Mean(col, nil))
	}

	var cam mat.VecDense
	cam.MulVec(acts, weights)
	raw := cam.RawVector().Data

	out := make([]float64, cells)
	for i, v := range raw {
		// NaN и бесконечности считаем нулём, иначе нормировка даст NaN.
		if v > 0 && !math.IsInf(v, 0) {
			out[i] = v
		}
	}
	floats.Scale(1/(floats.Max(out)+Epsilon), out)
	return out, nil
}

// Upsample билинейно растягивает карту w×h до size×size. Узлы выборки
// совпадают с центрами пикселей, крайние значения повторяются.
func Upsample(grid []float64, w, h, size int) []float64 {
	out := make([]float64, size*size)
	sx := float64(w) / float64(size)
	sy := float64(h) / float64(size)

	for y := 0; y < size; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0, y1, wy := neighbours(fy, h)
		for x := 0; x < size; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0, x1, wx := neighbours(fx, w)

			top := grid[y0*w+x0]*(1-wx) + grid[y0*w+x1]*wx
			bottom := grid[y1*w+x0]*(1-wx) + grid[y1*w+x1]*wx
			v := top*(1-wy) + bottom*wy

			out[y*size+x] = math.Min(1, math.Max(0, v))
		}
	}
	return out
}

func neighbours(f float64, n int) (lo, hi int, frac float64) {
	if f <= 0 {
		return 0, 0, 0
	}
	lo = int(math.Floor(f))
	if lo >= n-1 {
		return n - 1, n - 1, 0
	}
	return lo, lo + 1, f - float64(lo)
}

func toFloat64(src []float32) []float64 {
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}
