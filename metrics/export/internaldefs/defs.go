package internaldefs

import (
	campusAuth "github.com/MrEthical07/campusAuth"
)

type CounterDef struct {
	ID   campusAuth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   campusAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: campusAuth.MetricOTPRequested, Name: "campusauth_otp_requested_total", Help: "Verification codes issued."},
	{ID: campusAuth.MetricOTPRequestFailure, Name: "campusauth_otp_request_failure_total", Help: "Verification code requests that failed."},
	{ID: campusAuth.MetricOTPRejected, Name: "campusauth_otp_rejected_total", Help: "Signups rejected by OTP check."},
	{ID: campusAuth.MetricSignupSuccess, Name: "campusauth_signup_success_total", Help: "Accounts created."},
	{ID: campusAuth.MetricSignupFailure, Name: "campusauth_signup_failure_total", Help: "Failed signup attempts."},
	{ID: campusAuth.MetricLoginSuccess, Name: "campusauth_login_success_total", Help: "Successful logins."},
	{ID: campusAuth.MetricLoginFailure, Name: "campusauth_login_failure_total", Help: "Failed logins."},
	{ID: campusAuth.MetricPasswordUpgraded, Name: "campusauth_password_upgraded_total", Help: "Password hashes rehashed after login."},
	{ID: campusAuth.MetricPasswordChangeSuccess, Name: "campusauth_password_change_success_total", Help: "Successful password changes."},
	{ID: campusAuth.MetricPasswordChangeFailure, Name: "campusauth_password_change_failure_total", Help: "Failed password changes."},
	{ID: campusAuth.MetricLogout, Name: "campusauth_logout_total", Help: "Logouts."},
	{ID: campusAuth.MetricRefreshSuccess, Name: "campusauth_refresh_success_total", Help: "Refresh token redemptions."},
	{ID: campusAuth.MetricRefreshFailure, Name: "campusauth_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: campusAuth.MetricAuthenticateFailure, Name: "campusauth_authenticate_failure_total", Help: "Requests rejected by access token check."},
	{ID: campusAuth.MetricRoleDenied, Name: "campusauth_role_denied_total", Help: "Requests rejected by account type check."},
	{ID: campusAuth.MetricMailSent, Name: "campusauth_mail_sent_total", Help: "Verification mails delivered."},
	{ID: campusAuth.MetricMailFailed, Name: "campusauth_mail_failed_total", Help: "Verification mails that failed to deliver."},
}

var HistogramDefs = []HistogramDef{
	{ID: campusAuth.MetricValidateLatency, Name: "campusauth_authenticate_latency_seconds", Help: "Access token authentication latency."},
}

// MailDroppedName is the counter fed by Engine.MailDropped.
const (
	MailDroppedName = "campusauth_mail_dropped_total"
	MailDroppedHelp = "Verification mails dropped because the queue was full or closed."
)

// HistogramBounds are the upper bounds, in seconds, of the engine latency
// buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
