// Package logger builds the zap loggers of the server and the invoker.
//
// The server logs to stderr, as colored console lines in development mode
// or JSON in production mode. The invoker runs inside a sandbox where
// stdout carries the result frame, so it logs to a file or not at all.
//
// Usage:
//
//	log, err := logger.NewFromConfig(cfg)
//	if err != nil {
//	    return err
//	}
//	log.Info("server started", zap.String("transport", cfg.Server.Transport))
//
//	invokerLog, err := logger.NewFile("/tmp/invoker.log", "debug")
package logger
