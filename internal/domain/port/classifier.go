package port

import (
	"context"

	"mammo-vision/internal/domain/entity"
)

// Classifier бинарный классификатор злокачественности с доступом к активациям
// выделенного слоя и градиентам выхода по ним.
type Classifier interface {
	// Load загружает веса; повторный вызов на загруженной модели ничего не делает
	Load(ctx context.Context) error

	// Unload освобождает модель и память ускорителя
	Unload() error

	// Loaded сообщает, загружена ли модель
	Loaded() bool

	// Infer выполняет прямой проход. Если градиенты посчитать не удалось,
	// Inference.Gradients равен nil, а ошибка не возвращается.
	Infer(ctx context.Context, input *entity.InputImage) (*entity.Inference, error)

	// FeatureLayer имя слоя, из которого берутся активации
	FeatureLayer() string
}
