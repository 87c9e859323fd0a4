//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"image"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"mammo-vision/internal/domain/entity"
	apperrors "mammo-vision/internal/errors"
)

// Preprocessor готовит маммограмму к классификатору средствами OpenCV.
type Preprocessor struct{}

// NewPreprocessor создаёт препроцессор
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// Prepare декодирует снимок, обрезает по ткани, выравнивает контраст и
// приводит к квадрату inputSize×inputSize со значениями в [0,1].
func (p *Preprocessor) Prepare(ctx context.Context, imageData []byte, inputSize int) (*entity.PreparedScan, error) {
	_ = ctx
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	crop := LocateTissue(gray)
	log.WithFields(log.Fields{
		"width":  mat.Cols(),
		"height": mat.Rows(),
		"crop":   crop,
	}).Debug("tissue located")

	grayCrop := gray.Region(crop.Rect())
	defer grayCrop.Close()

	enhanced := Equalize(grayCrop)
	defer enhanced.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(enhanced, &rgb, gocv.ColorGrayToBGR)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, image.Pt(inputSize, inputSize), 0, 0, gocv.InterpolationLinear)

	input := entity.NewInputImage(inputSize)
	for i, v := range resized.ToBytes() {
		input.Pixels[i] = float32(v) / 255
	}

	display, err := displayPanel(mat, crop, inputSize)
	if err != nil {
		return nil, err
	}

	return &entity.PreparedScan{
		SourceWidth:  mat.Cols(),
		SourceHeight: mat.Rows(),
		Crop:         crop,
		Input:        input,
		Display:      display,
	}, nil
}

// LocateTissue ищет главную область ткани. При любой неудаче возвращает весь кадр.
func LocateTissue(gray gocv.Mat) entity.CropRect {
	full := entity.FullFrame(gray.Cols(), gray.Rows())
	if gray.Empty() {
		return full
	}

	// Ткань светлее фона: Otsu отделяет её от тёмной подложки.
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(TissueKernelSize, TissueKernelSize))
	defer kernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	idx := largestContour(contours)
	if idx < 0 {
		return full
	}
	return PadCrop(gocv.BoundingRect(contours.At(idx)), gray.Cols(), gray.Rows())
}

// Equalize применяет CLAHE (clip 3.0, сетка 8×8). Результат закрывает вызывающий.
func Equalize(gray gocv.Mat) gocv.Mat {
	clahe := gocv.NewCLAHEWithParams(CLAHEClipLimit, image.Pt(CLAHETileGrid, CLAHETileGrid))
	defer clahe.Close()

	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	return enhanced
}

// largestContour индекс контура с наибольшей площадью, -1 если контуров нет.
// При равных площадях выигрывает первый.
func largestContour(contours gocv.PointsVector) int {
	best, bestArea := -1, -1.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > bestArea {
			best, bestArea = i, area
		}
	}
	return best
}

func displayPanel(mat gocv.Mat, crop entity.CropRect, size int) (image.Image, error) {
	region := mat.Region(crop.Rect())
	defer region.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(region, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)

	return resized.ToImage()
}

// decodeToMat превращает байты изображения в gocv.Mat.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	if err == nil {
		err = errors.New("empty image")
	}
	return gocv.NewMat(), apperrors.NewInvalidInputError("failed to decode image", err)
}
