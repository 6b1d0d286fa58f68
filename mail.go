package campusAuth

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/MrEthical07/campusAuth/internal/mailqueue"
	"go.uber.org/zap"
)

// MailMessage is one outgoing HTML mail.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers mail. Send should honor ctx for its deadline.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailerFunc adapts a function to [Mailer].
type MailerFunc func(ctx context.Context, msg MailMessage) error

func (f MailerFunc) Send(ctx context.Context, msg MailMessage) error {
	return f(ctx, msg)
}

type mailerSender struct {
	mailer Mailer
}

func (s mailerSender) Send(ctx context.Context, msg mailqueue.Message) error {
	return s.mailer.Send(ctx, MailMessage{To: msg.To, Subject: msg.Subject, HTML: msg.HTML})
}

const verificationMailHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>OTP Verification Email</title></head>
<body style="font-family: Arial, sans-serif; color: #333333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px; text-align: center;">
    <h2>{{.Institution}}</h2>
    <p>Dear {{.FirstName}},</p>
    <p>Thank you for registering. Use the following OTP to verify your account:</p>
    <h1 style="letter-spacing: 4px;">{{.Code}}</h1>
    <p>This OTP is valid for {{.ValidFor}}. If you did not request this verification, please disregard this email.</p>
  </div>
</body>
</html>`

type verificationMailData struct {
	Institution string
	FirstName   string
	Code        string
	ValidFor    string
}

func newVerificationTemplate() (*template.Template, error) {
	return template.New("verification").Parse(verificationMailHTML)
}

func (e *Engine) recordMailResult(err error) {
	if err != nil {
		e.metricInc(MetricMailFailed)
		return
	}
	e.metricInc(MetricMailSent)
}

// sendVerification renders and hands off the OTP mail. Delivery problems
// are logged and counted; they never fail the request that issued the code.
func (e *Engine) sendVerification(ctx context.Context, email, firstName, code string) {
	if e.mailer == nil || e.mailTemplate == nil {
		return
	}

	var body bytes.Buffer
	if err := e.mailTemplate.Execute(&body, verificationMailData{
		Institution: e.config.Mail.InstitutionName,
		FirstName:   firstName,
		Code:        code,
		ValidFor:    humanDuration(e.config.OTP.TTL),
	}); err != nil {
		e.logger.Error("render verification mail", zap.Error(err))
		e.metricInc(MetricMailFailed)
		return
	}

	msg := mailqueue.Message{
		To:      email,
		Subject: e.config.Mail.VerificationSubject,
		HTML:    body.String(),
	}

	if e.mailQueue != nil {
		e.mailQueue.Enqueue(ctx, msg)
		return
	}

	sendCtx := context.WithoutCancel(ctx)
	if e.config.Mail.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, e.config.Mail.SendTimeout)
		defer cancel()
	}
	err := mailerSender{mailer: e.mailer}.Send(sendCtx, msg)
	if err != nil {
		e.logger.Warn("verification mail failed", zap.String("to", email), zap.Error(err))
	}
	e.recordMailResult(err)
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	default:
		return d.String()
	}
}
