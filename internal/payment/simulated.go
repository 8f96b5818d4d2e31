package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Refusal string

const (
	RefusalUnknown           Refusal = "unknown reason"
	RefusalInsufficientFunds Refusal = "insufficient funds"
	RefusalCardDeclined      Refusal = "card declined"
	RefusalExpiredCard       Refusal = "expired card"
	RefusalFraudSuspected    Refusal = "fraud suspected"
	RefusalLimitExceeded     Refusal = "limit exceeded"
)

var refusals = []Refusal{
	RefusalInsufficientFunds,
	RefusalCardDeclined,
	RefusalExpiredCard,
	RefusalFraudSuspected,
	RefusalLimitExceeded,
}

// StatusSource decides whether a simulated charge goes through.
type StatusSource interface {
	GetStatus() (Status, Refusal)
}

type RandomStatus struct {
	SuccessRate int
}

func (r RandomStatus) GetStatus() (Status, Refusal) {
	return calcStatus(rand.IntN(101), r.SuccessRate)
}

// calcStatus maps a roll in [0, 100] to an outcome. Rolls below successRate
// succeed; the rest map onto the refusal reasons, with overflow reported as unknown.
func calcStatus(roll, successRate int) (Status, Refusal) {
	if roll < successRate {
		return StatusSucceeded, ""
	}
	idx := roll - successRate
	if idx == 0 || idx > len(refusals) {
		return StatusFailed, RefusalUnknown
	}
	return StatusFailed, refusals[idx-1]
}

// SimulatedGateway settles payments locally without a provider.
type SimulatedGateway struct {
	status StatusSource
	log    *zap.Logger
	now    func() time.Time
	seq    atomic.Uint64
}

func NewSimulatedGateway(status StatusSource, log *zap.Logger) *SimulatedGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &SimulatedGateway{status: status, log: log, now: time.Now}
}

func (g *SimulatedGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := g.now()
	return &Intent{
		ID:          fmt.Sprintf("sim_order_%d_%d", now.UnixNano(), g.seq.Add(1)),
		Provider:    "simulated",
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		CreatedAt:   now,
	}, nil
}

// Confirm ignores any client-claimed success and rolls the status source instead.
func (g *SimulatedGateway) Confirm(_ context.Context, intent *Intent, cb Callback) (*Outcome, error) {
	if out, done, err := preflight(intent, cb); done {
		return out, err
	}

	status, refusal := g.status.GetStatus()
	if status != StatusSucceeded {
		g.log.Info("simulated payment refused",
			zap.String("intent_id", intent.ID),
			zap.String("reason", string(refusal)))
		return &Outcome{Status: StatusFailed, Reason: string(refusal)}, nil
	}
	return &Outcome{
		Status:     StatusSucceeded,
		PaymentRef: fmt.Sprintf("TXN-%s-%d", intent.ID, g.now().UnixNano()),
	}, nil
}
