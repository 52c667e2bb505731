package events

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankcore/transaction-service/internal/core/audit"
	"github.com/bankcore/transaction-service/internal/core/logger"
)

var complianceThreshold = decimal.NewFromInt(10000)
var lowBalanceThreshold = decimal.NewFromInt(100)

// AuditHandler records every dispatched event into the audit trail.
type AuditHandler struct {
	auditLog *audit.Log
}

func NewAuditHandler(auditLog *audit.Log) *AuditHandler {
	return &AuditHandler{auditLog: auditLog}
}

func (h *AuditHandler) Handle(event Event) {
	h.auditLog.Record(audit.Entry{
		EventType: event.EventName(),
		Method:    "events.dispatch",
		Details:   fmt.Sprintf("%+v", event),
		User:      "system",
		Outcome:   audit.OutcomeSuccess,
	})
}

// FraudHandler scores created transactions and republishes a FraudSuspected
// event for high-risk ones. The scoring is a simulation stand-in for a real
// model.
type FraudHandler struct {
	publisher Publisher
	log       logger.Logger
	rng       *rand.Rand
	now       func() time.Time
}

func NewFraudHandler(publisher Publisher, log logger.Logger) *FraudHandler {
	return &FraudHandler{
		publisher: publisher,
		log:       log,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

func (h *FraudHandler) Handle(event Event) {
	switch e := event.(type) {
	case TransactionCreated:
		score := h.riskScore(e)
		h.log.Debug("risk score calculated",
			logger.Int64Field("transaction_id", e.TransactionID),
			logger.Float64Field("score", score),
		)
		if score > 0.7 {
			h.publisher.Publish(FraudSuspected{
				TransactionID:   e.TransactionID,
				AccountID:       e.AccountID,
				Amount:          e.Amount,
				SuspicionReason: "Automated risk analysis",
				RiskScore:       score,
				DetectedAt:      e.CreatedAt,
				DetectionSource: "RISK_MODEL",
			})
		}
	case FraudSuspected:
		h.log.Warn("FRAUD ALERT",
			logger.Int64Field("transaction_id", e.TransactionID),
			logger.StringField("account_id", e.AccountID),
			logger.Float64Field("risk_score", e.RiskScore),
		)
		if e.RiskScore > 0.9 {
			h.freezeAccount(e.AccountID)
		}
	}
}

func (h *FraudHandler) riskScore(e TransactionCreated) float64 {
	score := 0.1
	if e.Amount.GreaterThan(complianceThreshold) {
		score += 0.3
	}
	hour := h.now().Hour()
	if hour < 6 || hour > 22 {
		score += 0.2
	}
	score += h.rng.Float64() * 0.4
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func (h *FraudHandler) freezeAccount(accountID string) {
	// A real implementation would flip the account status in storage.
	h.log.Error("account frozen",
		logger.StringField("account_id", accountID),
		logger.StringField("reason", "High fraud risk detected"),
	)
}

// ComplianceHandler triggers regulatory checks for large transactions and
// executes the simulated checks when a ComplianceCheckRequired event arrives.
type ComplianceHandler struct {
	publisher Publisher
	log       logger.Logger
	rng       *rand.Rand
}

func NewComplianceHandler(publisher Publisher, log logger.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		publisher: publisher,
		log:       log,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *ComplianceHandler) Handle(event Event) {
	switch e := event.(type) {
	case TransactionCreated:
		if e.Amount.GreaterThanOrEqual(complianceThreshold) {
			h.publisher.Publish(ComplianceCheckRequired{
				TransactionID:   e.TransactionID,
				AccountID:       e.AccountID,
				Amount:          e.Amount,
				TransactionType: e.TransactionType,
				RegulationType:  "AML",
				TriggeredAt:     e.CreatedAt,
			})
		}
	case ComplianceCheckRequired:
		h.performCheck(e)
	}
}

func (h *ComplianceHandler) performCheck(e ComplianceCheckRequired) {
	h.log.Info("compliance check initiated",
		logger.Int64Field("transaction_id", e.TransactionID),
		logger.StringField("regulation", e.RegulationType),
	)

	// Simulated check with a ~95% pass rate.
	if h.rng.Float64() > 0.05 {
		h.log.Info("compliance check passed",
			logger.Int64Field("transaction_id", e.TransactionID),
			logger.StringField("regulation", e.RegulationType),
		)
	} else {
		h.log.Warn("compliance check failed",
			logger.Int64Field("transaction_id", e.TransactionID),
			logger.StringField("regulation", e.RegulationType),
		)
	}
}

// NotificationHandler emits alert log lines for the channels a production
// system would push to (email, SMS, push).
type NotificationHandler struct {
	log logger.Logger
}

func NewNotificationHandler(log logger.Logger) *NotificationHandler {
	return &NotificationHandler{log: log}
}

func (h *NotificationHandler) Handle(event Event) {
	switch e := event.(type) {
	case TransactionCreated:
		h.log.Info("transaction alert sent",
			logger.Int64Field("transaction_id", e.TransactionID),
			logger.StringField("account_id", e.AccountID),
			logger.StringField("amount", e.Amount.String()),
		)
	case TransactionApproved:
		h.log.Info("approval notification sent",
			logger.Int64Field("transaction_id", e.TransactionID),
		)
	case TransactionRejected:
		h.log.Warn("rejection notification sent",
			logger.Int64Field("transaction_id", e.TransactionID),
			logger.StringField("reason", e.RejectionReason),
		)
	case TransferInitiated:
		h.log.Info("transfer confirmation sent",
			logger.Int64Field("transaction_id", e.TransactionID),
			logger.StringField("target_account", e.TargetAccount),
		)
	case FraudSuspected:
		h.log.Error("fraud alert sent",
			logger.Int64Field("transaction_id", e.TransactionID),
			logger.StringField("account_id", e.AccountID),
			logger.Float64Field("risk_score", e.RiskScore),
		)
	case AccountBalanceUpdated:
		if e.NewBalance.LessThan(lowBalanceThreshold) {
			h.log.Warn("low balance alert sent",
				logger.StringField("account_id", e.AccountID),
				logger.StringField("balance", e.NewBalance.String()),
			)
		}
	}
}
