// Package logger provides a singleton Zap logger with context-based scoping.
//
// Initialize once in main:
//
//	logger.Init(logger.Config{Env: "prod", Level: "info", ServiceName: "camly-idp"})
//	defer logger.Sync()
//
// In handlers and services, prefer the context accessor so request-scoped
// fields (request_id, client_id) propagate automatically:
//
//	log := logger.From(ctx)
//	log.Info("token issued", logger.ClientID(clientID))
package logger
