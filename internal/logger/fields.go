package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
	FieldSession   = "session_id"
	FieldLanguage  = "lang"
	FieldComponent = "component"
)

type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and omitting entries with an empty key or value.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields describe the model provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// WithSession tags every entry with the interview session and its language.
func WithSession(logger *zap.Logger, sessionID, lang string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldSession, Value: sessionID},
		StringField{Key: FieldLanguage, Value: lang},
	)...)
}

// WithComponent tags entries with the application component that wrote them.
func WithComponent(logger *zap.Logger, component string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldComponent, Value: component})...)
}
