package domain

import "errors"

var (
	ErrNoDisplay          = errors.New("no display found")
	ErrCaptureUnavailable = errors.New("capture temporarily unavailable")
	ErrAuthRejected       = errors.New("authentication rejected")
	ErrPeerExists         = errors.New("peer already registered")
	ErrPeerNotFound       = errors.New("peer not found")
	ErrPeerClosed         = errors.New("peer queue closed")
	ErrBusClosed          = errors.New("frame bus closed")
)
