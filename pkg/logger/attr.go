package logger

import (
	"log/slog"
	"strconv"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Organization records the organization id under the key "organization".
func Organization(id string) slog.Attr {
	return slog.String("organization", id)
}

// FeatureID records the feature id under the key "feature_id".
func FeatureID(id string) slog.Attr {
	return slog.String("feature_id", id)
}

// Environment records an environment id under the key "environment".
func Environment(id string) slog.Attr {
	return slog.String("environment", id)
}

// Version records a feature or revision version under the key "version".
func Version(v int) slog.Attr {
	return slog.Int("version", v)
}

// Action records the change action under the key "action".
func Action(name string) slog.Attr {
	return slog.String("action", name)
}

// Count records a number of items under the key "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}
