package logger

import (
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the daemon logger: a colored console core teed with a rotating
// file core. Debug mode switches to the development config and logs next to
// the binary instead of the configured file.
func New(debug bool, file string) (*zap.Logger, error) {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		file = "./spotlightd.log"
	} else {
		config = zap.NewProductionConfig()
	}
	config.EncoderConfig.StacktraceKey = ""
	config.EncoderConfig.TimeKey = ""

	// Enable caller information
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(config.EncoderConfig)

	// File output carries no colors
	fileEncoderConfig := config.EncoderConfig
	fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	fileEncoder := zapcore.NewConsoleEncoder(fileEncoderConfig)

	logRotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    32,   // megabytes
		MaxBackups: 3,    // number of backups to keep
		MaxAge:     30,   // days to keep backups
		Compress:   true, // compress backups
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), config.Level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(logRotator), config.Level),
	)

	return zap.New(core, zap.AddCaller()), nil
}
