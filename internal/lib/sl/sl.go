package sl

import (
	"log/slog"
)

// Err wraps an error as a slog attribute.
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Module tags log records with the emitting component.
func Module(name string) slog.Attr {
	return slog.Attr{
		Key:   "module",
		Value: slog.StringValue(name),
	}
}

// Secret logs a sensitive value in masked form, keeping only the
// first and last two characters visible.
func Secret(key, value string) slog.Attr {
	masked := value
	if len(value) > 6 {
		masked = value[:2] + "****" + value[len(value)-2:]
	} else if value != "" {
		masked = "****"
	}
	return slog.Attr{
		Key:   key,
		Value: slog.StringValue(masked),
	}
}
