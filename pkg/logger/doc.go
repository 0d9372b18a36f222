// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute constructors,
// and transparent injection of values stored in context.Context.
//
// A single factory, New, creates a *slog.Logger configured by Option
// functions: output format (text or json), minimum level, static attributes
// applied to every record, and ContextExtractor callbacks that pull dynamic
// attributes (such as a run id) out of the context on every Handle call.
//
// Helper constructors in attr.go return commonly used slog.Attr values so
// attribute naming stays consistent across packages. Stage, JobID, RunID and
// Attempt cover the scheduling vocabulary; Error and Errors produce empty
// attributes for nil errors so call sites need no nil check.
//
//	log := logger.New(
//	    logger.WithDevelopment("pipeline-worker"),
//	    logger.WithContextValue("run_id", ctxKeyRunID),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "stage completed",
//	    logger.Stage("calibrate"),
//	    logger.Attempt(2),
//	    logger.Duration(time.Since(start)),
//	)
package logger
