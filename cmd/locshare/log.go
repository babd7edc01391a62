package main

import (
	"github.com/phuslu/log"
	"gopkg.in/natefinch/lumberjack.v2"
	"nuha.dev/locshare/internal/config"
)

// setupLog must run before any component copies log.DefaultLogger.
func setupLog(c config.Log) func() {
	log.DefaultLogger.Level = log.ParseLevel(c.Level)
	log.DefaultLogger.Caller = 0
	if c.File != "" {
		lj := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
		log.DefaultLogger.Writer = &log.IOWriter{Writer: lj}
		return func() { _ = lj.Close() }
	}
	if c.Console {
		log.DefaultLogger.Writer = &log.ConsoleWriter{ColorOutput: true, QuoteString: true}
	}
	return func() {}
}
