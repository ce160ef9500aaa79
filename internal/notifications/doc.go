// Package notifications delivers analysis results to trainees and operator
// alerts to ntfy.
//
// The result mailer retries transient SMTP failures with bounded exponential
// backoff; a submission that completed analysis stays completed no matter how
// delivery goes. Both transports degrade to no-ops when unconfigured so the
// daemon runs without mail or ntfy credentials.
package notifications
