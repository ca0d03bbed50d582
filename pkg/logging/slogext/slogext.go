// Package slogext holds small slog helpers shared across packages.
package slogext

import "log/slog"

// Err renders an error as the conventional "error" attribute.
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
