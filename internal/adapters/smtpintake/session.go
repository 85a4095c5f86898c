package smtpintake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

var (
	errReviewUnavailable = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Content review unavailable, try again later",
	}
	errMalformedMessage = &smtp.SMTPError{
		Code:         554,
		EnhancedCode: smtp.EnhancedCode{5, 6, 0},
		Message:      "Malformed message",
	}
)

type backend struct {
	gateway *Gateway
}

// NewSession creates a new SMTP session
func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{gateway: b.gateway}, nil
}

type session struct {
	gateway    *Gateway
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *session) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Logout ends the session
func (s *session) Logout() error {
	return nil
}

// Mail sets the sender address
func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data reviews the message text and either rejects it or relays it with
// the verdict headers prepended
func (s *session) Data(r io.Reader) error {
	g := s.gateway

	raw, err := io.ReadAll(r)
	if err != nil {
		g.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		g.logger.Warn("Failed to parse message", zap.Error(err), zap.String("sender", s.sender))
		return errMalformedMessage
	}

	text, err := extractReviewText(msg, g.textProcessor)
	if err != nil {
		g.logger.Warn("Failed to extract message text", zap.Error(err), zap.String("sender", s.sender))
		return errMalformedMessage
	}
	text = g.textProcessor.ProcessText(text, g.opts.MaxBodySize)

	ctx, cancel := context.WithTimeout(context.Background(), g.opts.ReviewTimeout)
	defer cancel()

	verdict, err := g.reviewer.ReviewText(ctx, text)
	if err != nil {
		g.logger.Error("Failed to review message",
			zap.Error(err),
			zap.String("sender", s.sender))
		return errReviewUnavailable
	}

	if !verdict.Approved() && g.opts.BlockRejected {
		g.logger.Info("Rejecting message",
			zap.String("sender", s.sender),
			zap.String("reason", verdict.Reason))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      headerSafe(verdict.Reason),
		}
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "%s: %s\r\n", g.opts.StatusHeader, verdict.Status)
	if verdict.Reason != "" {
		fmt.Fprintf(&out, "%s: %s\r\n", g.opts.ReasonHeader, headerSafe(verdict.Reason))
	}
	out.Write(raw)

	if err := g.relay(s.sender, s.recipients, out.Bytes()); err != nil {
		g.logger.Error("Failed to relay message",
			zap.Error(err),
			zap.String("sender", s.sender))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 4, 0},
			Message:      "Relay unavailable, try again later",
		}
	}

	g.logger.Info("Processed message",
		zap.String("sender", s.sender),
		zap.Int("recipients", len(s.recipients)),
		zap.String("status", string(verdict.Status)))
	return nil
}

// headerSafe folds a reason onto one line
func headerSafe(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
