package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu     UserState = "main_menu"     // В главном меню
	StateAwaitingScan UserState = "awaiting_scan" // Ожидание снимка
	StateProcessing   UserState = "processing"    // Анализ снимка
)

// User представляет пользователя бота
type User struct {
	ID           int64     // Telegram User ID
	ChatID       int64     // Telegram Chat ID
	State        UserState // Текущее состояние пользователя
	LastAnalysis string    // ID последнего анализа
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// CanSubmitScan сообщает, ждёт ли бот снимок от пользователя
func (u *User) CanSubmitScan() bool {
	return u.State == StateAwaitingScan || u.State == StateMainMenu
}
