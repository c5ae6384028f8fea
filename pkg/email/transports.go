package email

import (
	"fmt"
	"strings"
)

// TransportsFromConfig builds the transports named in cfg.Transports, in
// that order. Each name may appear once.
func TransportsFromConfig(cfg Config) ([]Transport, error) {
	out := make([]Transport, 0, len(cfg.Transports))
	for _, name := range cfg.Transports {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		var (
			sender EmailSender
			err    error
		)
		switch name {
		case "postmark":
			sender, err = NewPostmarkClient(cfg)
		case "webhook":
			sender, err = NewWebhookSender(cfg, nil)
		case "dev":
			sender = NewDevSender(cfg.DevDir)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
		}
		if err != nil {
			return nil, fmt.Errorf("transport %s: %w", name, err)
		}
		out = append(out, Transport{Name: name, Sender: sender})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no transports enabled", ErrInvalidConfig)
	}
	return out, nil
}
