//go:build !tensorflow
// +build !tensorflow

package classifier

import (
	"context"
	"errors"

	"mammo-vision/internal/domain/entity"
	apperrors "mammo-vision/internal/errors"
)

var errNoTensorflow = errors.New("tensorflow build tag is not enabled")

// TFClassifier заглушка без TensorFlow: модель никогда не загружается.
type TFClassifier struct {
	opts Options
}

// NewTFClassifier создаёт классификатор-заглушку
func NewTFClassifier(opts Options) *TFClassifier {
	return &TFClassifier{opts: opts}
}

func (c *TFClassifier) FeatureLayer() string {
	return c.opts.FeatureOp
}

func (c *TFClassifier) Loaded() bool {
	return false
}

// Load возвращает ошибку, если сборка без тега tensorflow.
func (c *TFClassifier) Load(ctx context.Context) error {
	_ = ctx
	return apperrors.NewResourceUnavailableError("classifier", errNoTensorflow)
}

func (c *TFClassifier) Unload() error {
	return nil
}

// Infer возвращает ошибку, если сборка без тега tensorflow.
func (c *TFClassifier) Infer(ctx context.Context, input *entity.InputImage) (*entity.Inference, error) {
	_ = ctx
	_ = input
	return nil, apperrors.NewResourceUnavailableError("classifier", errNoTensorflow)
}
