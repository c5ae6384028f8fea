// Package requestid tags every request with an id that is echoed in the
// X-Request-ID response header and attached to log records through
// LogRequestID.
package requestid
