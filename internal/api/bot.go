package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	app "mammo-vision/internal/application"
	"mammo-vision/internal/container"
	"mammo-vision/internal/domain/entity"
	apperrors "mammo-vision/internal/errors"
)

const (
	msgStart = `👋 Привет! Я бот для анализа маммографических снимков.

📸 Отправьте снимок, и я оценю вероятность злокачественности, покажу карту внимания модели и подозрительную область.

📋 Команды:
/check — начать анализ снимка
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте снимок (фото или файлом без сжатия)
2️⃣ Бот найдёт ткань, выровняет контраст и прогонит снимок через модель
3️⃣ Вы получите заключение и изображение из трёх панелей: снимок, карта Grad-CAM, область интереса

⚠️ Результат носит справочный характер и не заменяет заключение врача-рентгенолога.

📋 Команды:
/check — начать анализ
/cancel — отменить операцию`

	msgAwaitingScan    = "📸 Отправьте маммографический снимок для анализа."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для нового анализа."
	msgSendScan        = "📸 Пожалуйста, отправьте снимок для анализа."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Анализирую снимок..."
	msgBusy            = "⏳ Предыдущий снимок ещё анализируется, подождите."
	msgProcessingError = "⚠️ Не удалось проанализировать снимок. Попробуйте другой файл."
	msgInvalidImage    = "⚠️ Не удалось прочитать изображение. Пришлите JPEG или PNG."
	msgModelMissing    = "⚠️ Модель недоступна. Обратитесь к администратору."
	msgLowQuality      = "⚠️ Качество снимка слишком низкое для анализа. Пришлите более чёткий снимок."
	msgNoRegion        = "Очаговая область не выявлена."
)

// Bot представляет Telegram-бота
type Bot struct {
	api       *tgbotapi.BotAPI
	container *container.Container
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.WithField("account", api.Self.UserName).Info("authorized")

	return &Bot{
		api:       api,
		container: c,
	}, nil
}

// Run запускает основной цикл обработки сообщений
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	users := b.container.UserService
	user, err := users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		log.WithError(err).Error("get user")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	fileID, name, ok := scanFile(msg)
	if !ok {
		b.sendMessage(msg.Chat.ID, msgSendScan)
		return
	}
	if !user.CanSubmitScan() {
		b.sendMessage(msg.Chat.ID, msgBusy)
		return
	}
	b.handleScan(ctx, msg, fileID, name)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	users := b.container.UserService
	userID, chatID := msg.From.ID, msg.Chat.ID

	var err error
	switch msg.Command() {
	case "start":
		_, err = users.Cancel(ctx, userID, chatID)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		_, err = users.BeginCheck(ctx, userID, chatID)
		b.sendMessage(chatID, msgAwaitingScan)

	case "cancel":
		_, err = users.Cancel(ctx, userID, chatID)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
	if err != nil {
		log.WithError(err).WithField("command", msg.Command()).Error("update user state")
	}
}

// handleScan скачивает снимок, анализирует и отправляет заключение
func (b *Bot) handleScan(ctx context.Context, msg *tgbotapi.Message, fileID, name string) {
	users := b.container.UserService
	userID, chatID := msg.From.ID, msg.Chat.ID
	logger := log.WithFields(log.Fields{"user": userID, "chat": chatID})

	if _, err := users.SetState(ctx, userID, chatID, entity.StateProcessing); err != nil {
		logger.WithError(err).Error("update user state")
	}
	b.sendMessage(chatID, msgProcessing)

	imageData, err := b.downloadFile(fileID)
	if err != nil {
		logger.WithError(err).Error("download scan")
		b.sendMessage(chatID, msgProcessingError)
		b.resetState(ctx, userID, chatID)
		return
	}
	logger.WithField("bytes", len(imageData)).Debug("scan received")

	result, err := b.container.AnalysisService.Analyze(ctx, app.AnalysisRequest{Source: name, Data: imageData})
	if err != nil {
		logger.WithError(err).Error("analysis failed")
		b.sendMessage(chatID, errorMessage(err))
		b.resetState(ctx, userID, chatID)
		return
	}

	b.sendMessage(chatID, FormatResult(result))
	if result.VisualizationPath != nil {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(*result.VisualizationPath))
		photo.Caption = fmt.Sprintf("%s · %s", result.Prediction, result.DiagnosticReport.RiskLevel)
		if _, err := b.api.Send(photo); err != nil {
			logger.WithError(err).Warn("send visualization")
		}
	}

	if _, err := users.RememberAnalysis(ctx, userID, chatID, result.ID); err != nil {
		logger.WithError(err).Error("update user state")
	}
}

func (b *Bot) resetState(ctx context.Context, userID, chatID int64) {
	if _, err := b.container.UserService.Cancel(ctx, userID, chatID); err != nil {
		log.WithError(err).Error("reset user state")
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	fileURL := file.Link(b.api.Token)

	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).Error("send message")
	}
}

// scanFile выбирает файл снимка: фото наибольшего размера или документ-изображение.
// Имя файла уникально для снимка, от него зависит имя визуализации.
func scanFile(msg *tgbotapi.Message) (fileID, name string, ok bool) {
	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		return photo.FileID, fmt.Sprintf("%d_%s.jpg", msg.Chat.ID, photo.FileUniqueID), true
	}
	if doc := msg.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		ext := ".jpg"
		if doc.MimeType == "image/png" {
			ext = ".png"
		}
		return doc.FileID, fmt.Sprintf("%d_%s%s", msg.Chat.ID, doc.FileUniqueID, ext), true
	}
	return "", "", false
}

// markupStripper убирает разметку заголовков и выделения: сообщение уходит
// без ParseMode, и Telegram показал бы её буквально.
var markupStripper = strings.NewReplacer("### ", "", "## ", "", "**", "", "---\n\n", "")

// FormatResult текст ответа без разметки: заключение и область интереса.
func FormatResult(result *entity.PredictionResult) string {
	var b strings.Builder
	b.WriteString(markupStripper.Replace(result.DiagnosticReport.Markdown()))
	b.WriteString("\n\n")
	if result.BBox != nil {
		box := result.BBox
		fmt.Fprintf(&b, "Область интереса: x=%d, y=%d, %d×%d", box.X, box.Y, box.Width, box.Height)
	} else {
		b.WriteString(msgNoRegion)
	}
	if !result.HeatmapAvailable {
		b.WriteString("\nКарта внимания недоступна.")
	}
	if result.Quality != nil {
		fmt.Fprintf(&b, "\nКачество снимка: %.1f/100", result.Quality.Score)
	}
	fmt.Fprintf(&b, "\nID анализа: %s", result.ID)
	return b.String()
}

// errorMessage сообщение пользователю по коду ошибки
func errorMessage(err error) string {
	switch {
	case apperrors.HasCode(err, apperrors.ErrorInvalidInput):
		return msgInvalidImage
	case apperrors.HasCode(err, apperrors.ErrorResourceUnavailable):
		return msgModelMissing
	case apperrors.HasCode(err, apperrors.ErrorQualityRejected):
		return msgLowQuality
	default:
		return msgProcessingError
	}
}
