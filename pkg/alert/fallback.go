package alert

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewFallbackLogger returns a JSON logger for alerts that could not be delivered.
// Records go to a rotating file at path, or to stderr when path is empty.
func NewFallbackLogger(path string) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.MessageKey = "message"

	var ws zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if path != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		})
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), ws, zapcore.InfoLevel)
	return zap.New(core, zap.Fields(zap.String("app", "secretops-detector")))
}
