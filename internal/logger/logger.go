package logger

import (
	"os"

	"go.uber.org/zap"
)

var Log *zap.Logger

func Init() {
	if os.Getenv("APP_ENV") == "development" {
		Log = zap.Must(zap.NewDevelopment())
		return
	}
	Log = zap.Must(zap.NewProduction())
}

func Sugar() *zap.SugaredLogger {
	return Log.Sugar()
}
