package port

import (
	"context"

	"mammo-vision/internal/domain/entity"
)

// ResultCache хранилище готовых результатов по ключу содержимого снимка
type ResultCache interface {
	// Get возвращает результат; ok == false если записи нет
	Get(ctx context.Context, key string) (result *entity.PredictionResult, ok bool, err error)

	// Put сохраняет результат
	Put(ctx context.Context, key string, result *entity.PredictionResult) error
}
