// Package shared holds helpers used by more than one package.
//
// testutil provides a slog handler that captures records so tests can
// assert on what a component logged.
package shared
