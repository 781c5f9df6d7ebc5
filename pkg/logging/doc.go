// Package logging builds the service's slog logger from LOG_LEVEL and an
// optional log file, and routes the stdlib log package to the same output.
package logging
