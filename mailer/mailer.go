// Package mailer delivers campusAuth mail over SMTP through a connection
// pool.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	campusAuth "github.com/MrEthical07/campusAuth"
	"github.com/jordan-wright/email"
)

// Config describes the SMTP relay.
type Config struct {
	Host               string
	Port               int
	User               string
	Pass               string
	From               string
	FromName           string
	PoolSize           int
	SendTimeout        time.Duration
	InsecureSkipVerify bool
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports a configuration that cannot send.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("mailer: Host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("mailer: Port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.From) == "" {
		return errors.New("mailer: From must not be empty")
	}
	if (c.User == "") != (c.Pass == "") {
		return errors.New("mailer: User and Pass must be set together")
	}
	return nil
}

func (c Config) sender() string {
	if c.FromName == "" {
		return c.From
	}
	return fmt.Sprintf("%s <%s>", c.FromName, c.From)
}

// SMTP sends mail through a pool of SMTP connections.
type SMTP struct {
	pool    *email.Pool
	from    string
	timeout time.Duration
}

var _ campusAuth.Mailer = (*SMTP)(nil)

// New opens the pool. Connections are dialled lazily on first send.
func New(cfg Config) (*SMTP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	tlsOpts := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	pool, err := email.NewPool(cfg.Address(), cfg.PoolSize, auth, tlsOpts)
	if err != nil {
		return nil, fmt.Errorf("mailer: open pool: %w", err)
	}

	return &SMTP{
		pool:    pool,
		from:    cfg.sender(),
		timeout: cfg.SendTimeout,
	}, nil
}

// Send delivers msg. The wait for a pooled connection is bounded by the
// send timeout or the context deadline, whichever is sooner.
func (m *SMTP) Send(ctx context.Context, msg campusAuth.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	if err := m.pool.Send(buildEmail(m.from, msg), timeout); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
	}
	return nil
}

// Close shuts the pool down.
func (m *SMTP) Close() {
	if m != nil && m.pool != nil {
		m.pool.Close()
	}
}

func buildEmail(from string, msg campusAuth.MailMessage) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.HTML = []byte(msg.HTML)
	e.Headers.Set("Auto-Submitted", "auto-generated")
	return e
}
