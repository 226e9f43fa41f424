package ports

import (
	"io"
	"time"

	"deskrelay/internal/core/domain"
)

// MessageReader is the read half of a message-framed connection. The
// payload of each message is streamed so callers can bound what they read.
type MessageReader interface {
	NextReader() (messageType int, r io.Reader, err error)
	SetReadDeadline(t time.Time) error
}

type MetricsRecorder interface {
	RecordAuth(success bool)

	RecordSessionOpened(role domain.Role)
	RecordSessionClosed(role domain.Role, duration time.Duration)
	RecordBytesSent(role domain.Role, n int)

	RecordFrameCaptured()
	RecordFrameEncoded(size int, duration time.Duration)
	RecordFrameDropped(reason string)
	RecordCaptureRetry()
	RecordFramesSkipped(n int)

	RecordControlEvent(kind domain.EventKind)
	RecordControlIgnored(reason string)
	RecordInjectionError()

	RecordRelayFanout(delivered, dropped int)
	SetRelayPeers(n int)
}
