package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"time"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/core/ports"
	apperrors "deskrelay/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AuthPrefix starts the first message of every session.
const AuthPrefix = "AUTH:"

type AuthService interface {
	// Authenticate checks one message against the shared secret.
	Authenticate(messageType int, payload []byte) error
	// Await reads exactly one message from conn and moves sess to
	// Authenticated or Rejected. At most one byte more than the token is
	// consumed from the message.
	Await(ctx context.Context, conn ports.MessageReader, sess *domain.Session) error
	// Token returns the message a client sends to authenticate.
	Token() []byte
}

type authService struct {
	expected []byte
	timeout  time.Duration
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewAuthService(
	secret string,
	timeout time.Duration,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) AuthService {
	return &authService{
		expected: []byte(AuthPrefix + secret),
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *authService) Token() []byte {
	token := make([]byte, len(s.expected))
	copy(token, s.expected)
	return token
}

func (s *authService) Authenticate(messageType int, payload []byte) error {
	if messageType != websocket.TextMessage {
		return apperrors.NewAuthRejectedError("first message is not text", domain.ErrAuthRejected)
	}
	if subtle.ConstantTimeCompare(payload, s.expected) != 1 {
		return apperrors.NewAuthRejectedError("token mismatch", domain.ErrAuthRejected)
	}
	return nil
}

func (s *authService) Await(ctx context.Context, conn ports.MessageReader, sess *domain.Session) error {
	err := s.await(ctx, conn)
	if err != nil {
		sess.State = domain.AuthRejected
		s.metrics.RecordAuth(false)
		s.logger.Infow("Session rejected",
			"session_id", sess.ID,
			"remote_addr", sess.RemoteAddr,
			"error", err,
		)
		return err
	}

	sess.State = domain.AuthAuthenticated
	s.metrics.RecordAuth(true)
	s.logger.Infow("Session authenticated",
		"session_id", sess.ID,
		"remote_addr", sess.RemoteAddr,
		"role", sess.Role,
	)
	return nil
}

func (s *authService) await(ctx context.Context, conn ports.MessageReader) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewAuthRejectedError("context done", fmt.Errorf("%w: %w", domain.ErrAuthRejected, err))
	}

	if s.timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return apperrors.NewAuthRejectedError("set deadline", fmt.Errorf("%w: %w", domain.ErrAuthRejected, err))
		}
	}

	messageType, r, err := conn.NextReader()
	if err != nil {
		return apperrors.NewAuthRejectedError("no auth message", fmt.Errorf("%w: %w", domain.ErrAuthRejected, err))
	}
	// One byte past the token is enough to reject a longer message.
	payload, err := io.ReadAll(io.LimitReader(r, int64(len(s.expected))+1))
	if err != nil {
		return apperrors.NewAuthRejectedError("read auth message", fmt.Errorf("%w: %w", domain.ErrAuthRejected, err))
	}

	if err := s.Authenticate(messageType, payload); err != nil {
		return err
	}

	if s.timeout > 0 {
		if err := conn.SetReadDeadline(time.Time{}); err != nil {
			return apperrors.NewAuthRejectedError("clear deadline", fmt.Errorf("%w: %w", domain.ErrAuthRejected, err))
		}
	}
	return nil
}
