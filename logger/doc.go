// Package logger provides structured logging for iterpipe using zerolog.
//
// Loggers are tagged with a service name and, optionally, a component
// ("pipe", "executor", "sender:s3"). Library code defaults to a no-op
// logger; applications call Init once and fetch component loggers with Get.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("pipe")
//	log.Info("run completed", logger.Fields(logger.FieldRunID, id, logger.FieldCount, n))
package logger
