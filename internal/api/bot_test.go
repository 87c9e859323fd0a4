package telegram

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"mammo-vision/internal/domain/entity"
	"mammo-vision/internal/domain/risk"
	apperrors "mammo-vision/internal/errors"
)

func TestFormatResult(t *testing.T) {
	result := &entity.PredictionResult{
		ID:               "analysis-1",
		Prediction:       entity.LabelMalignant,
		DiagnosticReport: risk.Assess(0.9),
		BBox:             &entity.BoundingBox{X: 10, Y: 20, Width: 30, Height: 40},
		HeatmapAvailable: true,
		Quality:          &entity.QualityScore{Score: 72.5},
	}

	text := FormatResult(result)
	require.Contains(t, text, "MALIGNANT")
	require.Contains(t, text, "HIGH RISK")
	require.Contains(t, text, "x=10, y=20, 30×40")
	require.Contains(t, text, "72.5/100")
	require.Contains(t, text, "analysis-1")
	require.NotContains(t, text, "Карта внимания недоступна")
	require.NotContains(t, text, "##")
	require.NotContains(t, text, "**")
	require.Contains(t, text, "Primary Diagnosis: MALIGNANT")
}

func TestFormatResult_NoRegion(t *testing.T) {
	result := &entity.PredictionResult{
		ID:               "analysis-2",
		DiagnosticReport: risk.Assess(0.05),
	}

	text := FormatResult(result)
	require.Contains(t, text, msgNoRegion)
	require.Contains(t, text, "Карта внимания недоступна")
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, msgInvalidImage, errorMessage(apperrors.NewInvalidInputError("failed to decode image", nil)))
	require.Equal(t, msgModelMissing, errorMessage(apperrors.NewResourceUnavailableError("classifier", nil)))
	require.Equal(t, msgLowQuality, errorMessage(apperrors.NewQualityRejectedError(10, 40)))
	require.Equal(t, msgProcessingError, errorMessage(errors.New("boom")))
}

func TestScanFile(t *testing.T) {
	msg := &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 7},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", FileUniqueID: "s"},
			{FileID: "large", FileUniqueID: "l"},
		},
	}
	id, name, ok := scanFile(msg)
	require.True(t, ok)
	require.Equal(t, "large", id)
	require.Equal(t, "7_l.jpg", name)

	msg = &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 7},
		Document: &tgbotapi.Document{FileID: "doc", FileUniqueID: "d", MimeType: "image/png"},
	}
	id, name, ok = scanFile(msg)
	require.True(t, ok)
	require.Equal(t, "doc", id)
	require.Equal(t, "7_d.png", name)

	msg.Document.MimeType = "application/pdf"
	_, _, ok = scanFile(msg)
	require.False(t, ok)
}
