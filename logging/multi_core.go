package logging

import (
	"go.uber.org/zap/zapcore"
)

// MultiCoreConfig describes the console and file outputs of the logger.
type MultiCoreConfig struct {
	ConsoleLevel zapcore.Level
	FileLevel    zapcore.Level
	Console      zapcore.WriteSyncer
	// File may be nil, in which case only the console core is built.
	File    zapcore.WriteSyncer
	DevMode bool
}

// NewMultiCore tees a console core and an optional JSON file core.
// The console uses the colored console encoder in dev mode and JSON otherwise;
// the file is always JSON.
func NewMultiCore(cfg MultiCoreConfig) zapcore.Core {
	var consoleEncoder zapcore.Encoder
	if cfg.DevMode {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, cfg.Console, cfg.ConsoleLevel),
	}
	if cfg.File != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), cfg.File, cfg.FileLevel))
	}
	return zapcore.NewTee(cores...)
}
