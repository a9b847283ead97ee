package vault

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditPINSet            AuditEvent = "pin_set"
	AuditSetupStarted      AuditEvent = "setup_started"
	AuditSetupMismatch     AuditEvent = "setup_mismatch"
	AuditVerifySuccess     AuditEvent = "verify_success"
	AuditVerifyFailure     AuditEvent = "verify_failure"
	AuditVerifyLockedOut   AuditEvent = "verify_locked_out"
	AuditLockoutStarted    AuditEvent = "lockout_started"
	AuditBiometricAccepted AuditEvent = "biometric_accepted"
	AuditUnlocked          AuditEvent = "unlocked"
	AuditLocked            AuditEvent = "locked"
	AuditVaultReset        AuditEvent = "vault_reset"
	AuditKeyCreated        AuditEvent = "key_created"
	AuditDecryptFailed     AuditEvent = "decrypt_failed"
)

// auditLogger wraps slog.Logger for structured security audit logging.
// Entries never carry PIN material, verifiers or keys.
type auditLogger struct {
	logger  *slog.Logger
	clock   clock.Clock
	metrics *Collector
}

func newAuditLogger(logger *slog.Logger, clk clock.Clock, metrics *Collector) *auditLogger {
	return &auditLogger{
		logger:  logger.With("component", "audit"),
		clock:   clk,
		metrics: metrics,
	}
}

func (al *auditLogger) log(ctx context.Context, event AuditEvent, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("timestamp", al.clock.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", baseAttrs...)
	al.metrics.recordEvent(event, attrs)
}
