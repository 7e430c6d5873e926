// Package log builds the slog loggers of the harvester.
//
// Every logger is a chain of three handlers:
//   - slogctx.Handler adds the attributes stored in the context, so the
//     crawler can tag all records of a session with its id and namespace
//     once and log with InfoContext everywhere else.
//   - SecureHandler masks secrets: cookies, authorization headers, tokens,
//     URL passwords and sensitive query parameters. Site configurations
//     routinely carry cookies and bearer tokens, and crawl logs are shared.
//   - A text or JSON handler from log/slog writes the record.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.Options{Verbose: true})
//	ctx = slogctx.Append(ctx, "session", id)
//	logger.InfoContext(ctx, "crawl started", "seed", seed)
//
// Without Verbose only warnings and errors are written.
package log
