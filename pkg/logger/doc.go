// Package logger builds the service's *slog.Logger.
//
// New applies functional options on top of a JSON, info-level default.
// WithEnvironment switches to readable text output with debug level in
// development. ContextExtractor callbacks registered through
// WithContextExtractors run on every record, which is how the HTTP request id
// reaches log lines written deep inside the account service.
//
// Attribute helpers (Error, UserID, Email, Component, ...) keep key names
// consistent. Error returns an empty attribute for a nil error, so
//
//	log.InfoContext(ctx, "done", logger.Error(err))
//
// needs no nil check.
package logger
