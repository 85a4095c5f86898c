package smtpintake

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/content-review/internal/ports"
	"github.com/mikey/content-review/internal/utils"
	"go.uber.org/zap"
)

// RelayFunc hands an accepted message to the next hop
type RelayFunc func(sender string, recipients []string, data []byte) error

// Options configures a Gateway
type Options struct {
	ListenAddress string
	Domain        string
	BlockRejected bool
	MaxBodySize   int
	RelayEnabled  bool
	RelayAddress  string
	RelayPort     int
	StatusHeader  string
	ReasonHeader  string
	ReviewTimeout time.Duration
}

// Gateway is an SMTP content filter that reviews the text of incoming
// mail before passing it on
type Gateway struct {
	reviewer      ports.Reviewer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	opts          Options
	relay         RelayFunc
	server        *smtp.Server
}

// NewGateway creates a new mail intake gateway
func NewGateway(
	reviewer ports.Reviewer,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	opts Options,
) *Gateway {
	if opts.StatusHeader == "" {
		opts.StatusHeader = "X-Review-Status"
	}
	if opts.ReasonHeader == "" {
		opts.ReasonHeader = "X-Review-Reason"
	}
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	if opts.ReviewTimeout <= 0 {
		opts.ReviewTimeout = 15 * time.Second
	}

	g := &Gateway{
		reviewer:      reviewer,
		textProcessor: textProcessor,
		logger:        logger,
		opts:          opts,
	}
	g.relay = g.sendToRelay
	return g
}

// SetRelay replaces the next-hop delivery function
func (g *Gateway) SetRelay(relay RelayFunc) {
	g.relay = relay
}

// Name identifies the frontend
func (g *Gateway) Name() string {
	return "smtp"
}

// Start starts the SMTP listener
func (g *Gateway) Start() error {
	g.server = smtp.NewServer(&backend{gateway: g})
	g.server.Addr = g.opts.ListenAddress
	g.server.Domain = g.opts.Domain
	g.server.ReadTimeout = 30 * time.Second
	g.server.WriteTimeout = 30 * time.Second
	g.server.MaxMessageBytes = 30 * 1024 * 1024
	g.server.MaxRecipients = 50

	ln, err := net.Listen("tcp", g.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.opts.ListenAddress, err)
	}

	g.logger.Info("Mail intake starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			g.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the SMTP listener
func (g *Gateway) Stop() error {
	if g.server != nil {
		return g.server.Close()
	}
	return nil
}

// sendToRelay delivers the message to the configured next hop
func (g *Gateway) sendToRelay(sender string, recipients []string, data []byte) error {
	if !g.opts.RelayEnabled {
		g.logger.Warn("Relay disabled, accepted message is dropped")
		return nil
	}

	addr := net.JoinHostPort(g.opts.RelayAddress, fmt.Sprint(g.opts.RelayPort))
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	accepted := false
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			g.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", rcpt),
				zap.Error(err))
			continue
		}
		accepted = true
	}
	if !accepted {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		g.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}
