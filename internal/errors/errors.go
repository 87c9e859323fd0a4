package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode код ошибки анализа
type ErrorCode string

const (
	// Классификатор не загружен (нет весов, ошибка загрузки)
	ErrorResourceUnavailable ErrorCode = "RESOURCE_UNAVAILABLE"
	// Изображение не декодируется
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	// Не удалось получить градиенты для Grad-CAM
	ErrorSaliencyUnavailable ErrorCode = "SALIENCY_UNAVAILABLE"
	// Не удалось отрисовать или сохранить визуализацию
	ErrorVisualizationFailed ErrorCode = "VISUALIZATION_FAILED"
	// Снимок не прошёл порог качества
	ErrorQualityRejected ErrorCode = "QUALITY_REJECTED"
)

// AnalysisError структурированная ошибка конвейера анализа
type AnalysisError struct {
	Code      ErrorCode
	Message   string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

func NewResourceUnavailableError(resource string, cause error) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorResourceUnavailable,
		Message:   fmt.Sprintf("resource unavailable: %s", resource),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"resource": resource,
		},
		Cause: cause,
	}
}

func NewInvalidInputError(reason string, cause error) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorInvalidInput,
		Message:   reason,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewSaliencyUnavailableError(layer string, cause error) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorSaliencyUnavailable,
		Message:   fmt.Sprintf("gradients unavailable for layer %q", layer),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"layer": layer,
		},
		Cause: cause,
	}
}

func NewVisualizationFailedError(path string, cause error) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorVisualizationFailed,
		Message:   "visualization could not be written",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

func NewQualityRejectedError(score, minimum float64) *AnalysisError {
	return &AnalysisError{
		Code:      ErrorQualityRejected,
		Message:   fmt.Sprintf("quality score %.1f is below minimum %.1f", score, minimum),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"score":   score,
			"minimum": minimum,
		},
	}
}

// HasCode проверяет, что в цепочке ошибок есть AnalysisError с данным кодом.
func HasCode(err error, code ErrorCode) bool {
	var ae *AnalysisError
	for err != nil {
		if !stderrors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Cause
	}
	return false
}
