// Package logger builds the service's *slog.Logger and provides attribute
// helpers used across the authentication packages.
//
// Loggers are created from Config (LOG_LEVEL, LOG_FORMAT, APP_ENV) and may be
// decorated with context extractors so request scoped values, such as the
// authenticated user id, are attached to every record:
//
//	log := logger.New(
//	    logger.FromConfig(cfg),
//	    logger.WithContextExtractors(session.LogUserID),
//	)
//	log.WarnContext(ctx, "mail transport failed",
//	    logger.Transport("postmark"),
//	    logger.Error(err),
//	)
//
// Email addresses are masked by [Email] before they reach the output.
package logger
