// Package logging builds the structured loggers used across vigil.
//
// New returns a *slog.Logger configured from telemetry.logging: level,
// output format (json, text or console) and source locations. Every
// logger it returns does two things on top of the standard handlers:
//
//   - Secrets are redacted. Attributes named like credentials (token,
//     password, passphrase, secret, authorization) are replaced, and
//     credentials embedded in values, such as bearer tokens and
//     user:password@ in repository URLs, are masked.
//   - Context fields are attached. Records logged with a context carry
//     the job, run ID and policy stored by WithJob, WithRunID and
//     WithPolicy, plus the trace and span IDs of the active span.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	ctx = logging.WithJob(ctx, "nightly-orders")
//	logger.InfoContext(ctx, "audit started", "policy", "orders")
package logging
