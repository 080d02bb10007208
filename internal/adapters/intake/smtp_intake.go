package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/calendaria/duration-engine/internal/config"
	"github.com/calendaria/duration-engine/internal/core"
	"github.com/calendaria/duration-engine/internal/domains"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

const (
	processTimeout  = 2 * time.Minute
	maxReasonLength = 400
)

// SMTPIntake is an SMTP content filter that annotates inbound booking
// requests with the decided appointment duration and hands them back to
// the mail system
type SMTPIntake struct {
	processor  core.DurationProcessor
	processing core.EmailProcessingConfig
	checker    *domains.Checker
	cfg        config.SMTPConfig
	logger     *zap.Logger

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
}

// NewSMTPIntake creates a new SMTP intake
func NewSMTPIntake(
	processor core.DurationProcessor,
	processing core.EmailProcessingConfig,
	checker *domains.Checker,
	cfg config.SMTPConfig,
	logger *zap.Logger,
) *SMTPIntake {
	return &SMTPIntake{
		processor:  processor,
		processing: processing,
		checker:    checker,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start starts listening for SMTP connections
func (s *SMTPIntake) Start() error {
	l, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	s.serve(l)
	return nil
}

func (s *SMTPIntake) serve(l net.Listener) {
	server := smtp.NewServer(&smtpBackend{intake: s})
	server.Addr = l.Addr().String()
	server.Domain = s.cfg.Domain
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	server.MaxRecipients = 50

	s.mu.Lock()
	s.server = server
	s.listener = l
	s.mu.Unlock()

	s.logger.Info("SMTP intake starting", zap.String("address", server.Addr))

	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			s.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
}

// Addr returns the address the intake listens on once started
func (s *SMTPIntake) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the SMTP intake
func (s *SMTPIntake) Stop() error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()

	if server != nil {
		return server.Close()
	}
	return nil
}

// ProcessEmail decides the appointment duration for an email
func (s *SMTPIntake) ProcessEmail(ctx context.Context, email *core.Email) (*core.DurationResult, error) {
	return s.processor.Process(ctx, email.Processed(), s.processing)
}

// annotate runs the engine on a raw message and returns the message with
// the duration headers prepended. Messages the engine cannot process pass
// through unchanged.
func (s *SMTPIntake) annotate(ctx context.Context, raw []byte, sender string, recipients []string) ([]byte, *core.DurationResult) {
	email, _, err := ParseMessage(raw, sender, recipients)
	if err != nil {
		s.logger.Warn("Passing through unparseable message", zap.Error(err), zap.String("sender", sender))
		return raw, nil
	}

	result, err := s.ProcessEmail(ctx, email)
	if err != nil {
		s.logger.Warn("Passing through message without duration",
			zap.Error(err),
			zap.String("sender", email.From))
		return raw, nil
	}

	var annotated bytes.Buffer
	fmt.Fprintf(&annotated, "%s: %d\r\n", s.cfg.DurationHeader, result.FinalDuration)
	fmt.Fprintf(&annotated, "%s: %s\r\n", s.cfg.MethodHeader, result.Method)
	fmt.Fprintf(&annotated, "%s: %s\r\n", s.cfg.ConfidenceHeader, strconv.FormatFloat(result.Confidence, 'f', 2, 64))
	fmt.Fprintf(&annotated, "%s: %s\r\n", s.cfg.ReasonHeader, headerValue(result.Reasoning))
	annotated.Write(raw)

	return annotated.Bytes(), result
}

// headerValue folds text into a single encoded header line
func headerValue(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > maxReasonLength {
		text = string(runes[:maxReasonLength]) + "..."
	}
	return mime.QEncoding.Encode("utf-8", text)
}

// sendToRelay sends the annotated message to the downstream MTA
func (s *SMTPIntake) sendToRelay(sender string, recipients []string, emailData []byte) error {
	relayAddr := net.JoinHostPort(s.cfg.RelayAddress, strconv.Itoa(s.cfg.RelayPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", relayAddr, 10*time.Second)
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

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			s.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message has already been accepted
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	intake *SMTPIntake
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{intake: b.intake}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	intake     *SMTPIntake
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Logout() error {
	return nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.intake.checker != nil && !s.intake.checker.IsAccepted(to) {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Recipient domain not accepted",
		}
	}
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.intake.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	annotated, result := s.intake.annotate(ctx, raw, s.sender, s.recipients)
	if result != nil {
		s.intake.logger.Info("Booking request annotated",
			zap.String("sender", s.sender),
			zap.Int("recipients", len(s.recipients)),
			zap.Int("duration", result.FinalDuration),
			zap.String("method", string(result.Method)))
	}

	if !s.intake.cfg.RelayEnabled {
		return nil
	}

	if err := s.intake.sendToRelay(s.sender, s.recipients, annotated); err != nil {
		s.intake.logger.Error("Failed to relay message", zap.Error(err), zap.String("sender", s.sender))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 4, 1},
			Message:      "Downstream relay unavailable, try again later",
		}
	}
	return nil
}
