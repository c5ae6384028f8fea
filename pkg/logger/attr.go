package logger

import (
	"log/slog"
	"strconv"
	"strings"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
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

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the account identifier under the key "user_id".
func UserID(id int64) slog.Attr {
	return slog.Int64("user_id", id)
}

// Provider records the identity provider under the key "provider".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Transport records the outbound mail transport under the key "transport".
func Transport(name string) slog.Attr {
	return slog.String("transport", name)
}

// IP records the client address under the key "ip".
func IP(addr string) slog.Attr {
	return slog.String("ip", addr)
}

// Email records a masked address under the key "email": the local part is
// reduced to its first character so logs never hold a full address.
func Email(addr string) slog.Attr {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return slog.String("email", "***")
	}
	return slog.String("email", addr[:1]+"***"+addr[at:])
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
