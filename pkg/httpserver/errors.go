package httpserver

import "errors"

var (
	// ErrStart covers bind failures and Serve errors other than a clean close.
	ErrStart    = errors.New("httpserver: start failed")
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)
