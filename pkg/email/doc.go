// Package email sends transactional mail through interchangeable transports.
//
// Every transport implements EmailSender:
//   - NewPostmarkClient delivers through the Postmark API
//   - NewWebhookSender relays a signed JSON message to an HTTP endpoint
//   - NewDevSender writes .html and .json files to a local directory
//
// FailoverSender combines several transports. It tries them in order and
// returns on the first success. A failing transport receives a penalty of
// one, all penalties decay with a configurable half-life, and the try order
// is kept sorted by penalty, so a transport that keeps failing sinks to the
// back and recovers once it has been quiet for a while:
//
//	sender, err := email.NewFailoverSender([]email.Transport{
//	    {Name: "postmark", Sender: pm},
//	    {Name: "webhook", Sender: relay},
//	}, email.WithHalfLife(time.Hour), email.WithFailoverLogger(log))
//
// When every transport fails, SendEmail returns ErrAllTransportsFailed joined
// with each transport error.
//
// # Templates
//
// The templates subpackage renders templ components to strings:
//
//	html, err := templates.Render(ctx, templates.MagicLink(data))
//
// # Error Handling
//
//   - ErrInvalidConfig: configuration validation failed
//   - ErrInvalidParams: email parameters validation failed
//   - ErrFailedToSendEmail: a transport could not deliver
//   - ErrAllTransportsFailed: no transport in a FailoverSender delivered
package email
