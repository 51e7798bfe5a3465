package sl

import (
	"log/slog"
)

func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{
			Key:   "error",
			Value: slog.StringValue("nil"),
		}
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

func Module(mod string) slog.Attr {
	return slog.Attr{
		Key:   "module",
		Value: slog.StringValue(mod),
	}
}

// Secret logs only the edges of a sensitive value.
func Secret(key, value string) slog.Attr {
	masked := "***"
	if len(value) > 8 {
		masked = value[:3] + "***" + value[len(value)-2:]
	}
	return slog.Attr{
		Key:   key,
		Value: slog.StringValue(masked),
	}
}

// Phone keeps the last four digits of a phone number.
func Phone(phone string) slog.Attr {
	masked := phone
	if len(phone) > 4 {
		masked = "***" + phone[len(phone)-4:]
	}
	return slog.String("phone", masked)
}
