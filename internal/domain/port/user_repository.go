package port

import (
	"context"

	"mammo-vision/internal/domain/entity"
)

// UserRepository хранилище состояний диалога
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет пользователя целиком
	Save(ctx context.Context, user *entity.User) error

	// UpdateState обновляет только состояние
	UpdateState(ctx context.Context, userID int64, state entity.UserState) error
}
