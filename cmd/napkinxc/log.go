package main

import "go.uber.org/zap"

// appLogger wraps a zap.SugaredLogger the way botanic's cmd/botanic
// wrapped a bare verbose bool (logger.Logf): every subcommand config
// holds one and calls it for progress messages, silent unless
// --verbose was set. zap replaces that package's hand-rolled
// conditional fmt.Fprintf, matching the structured-logging stack the
// rest of this module (see SPEC_FULL.md's ambient stack) is built on.
type appLogger struct {
	sugar *zap.SugaredLogger
}

func newAppLogger(verbose bool) *appLogger {
	if !verbose {
		return &appLogger{sugar: zap.NewNop().Sugar()}
	}
	cfg := zap.NewDevelopmentConfig()
	logger, err := cfg.Build()
	if err != nil {
		return &appLogger{sugar: zap.NewNop().Sugar()}
	}
	return &appLogger{sugar: logger.Sugar()}
}

func (l *appLogger) Logf(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}
