package services

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func nowOrDefault(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now()
}

func newIDOrDefault(newID func() string) string {
	if newID != nil {
		return newID()
	}
	return uuid.NewString()
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
