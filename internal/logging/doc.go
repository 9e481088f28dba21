// Package logging provides structured logging for statebridge.
//
// It wraps Go's log/slog package with a JSON handler and a small set of
// persistent attributes (collection, key, subscription) so that every line
// emitted while serving a document can be correlated after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("", logging.LevelInfo) // stderr
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	docLog := logger.WithCollection("market_states").WithKey("BTC/USDT")
//	docLog.Debug("merge-set complete")
//
// When a directory is given, logs are appended to {dir}/statebridge.log.
// The file is rotated by size (RotatingWriter); NewLoggerWithRotation takes
// explicit limits, NewLogger uses DefaultRotationConfig.
//
// # Reading logs back
//
// AggregateLogs reads the live file and its rotated copies, gzipped or not,
// into LogEntry values. LogFilter and FilterLogs narrow them down, and
// ExportLogEntries writes them as JSON, text or CSV.
//
// # Levels
//
// DEBUG, INFO, WARN and ERROR are supported. Unknown level strings fall
// back to INFO.
//
// # Testing
//
// NopLogger returns a logger that discards everything. All statebridge
// components accept a nil *Logger and substitute NopLogger.
package logging
