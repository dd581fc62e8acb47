package commissions

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khholdings/agentpay-backend/internal/agents"
	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

const bpsDenominator = 10_000

// Result summarizes one disbursement run.
type Result struct {
	PayoutsCreated int
	PayoutsSkipped int
	TotalCents     int64
	LevelsWalked   int
}

// ServiceParams wires the disbursement service dependencies.
type ServiceParams struct {
	Payouts       Repository
	Agents        agents.Repository
	LevelRatesBps []int
	Logger        *logger.Logger
}

// Service walks the referral chain of a paid transaction and writes one
// payout row per upline level. Levels past the end of the chain are skipped;
// a missing or cyclic chain stops the walk without failing the run.
type Service struct {
	payouts Repository
	agents  agents.Repository
	rates   []int
	logg    *logger.Logger
}

// NewService builds a disbursement service from its parameters.
func NewService(params ServiceParams) *Service {
	return &Service{
		payouts: params.Payouts,
		agents:  params.Agents,
		rates:   params.LevelRatesBps,
		logg:    params.Logger,
	}
}

// DisburseForPayment computes and persists the upline payouts for a paid
// transaction. Re-running for the same payment is a no-op thanks to the
// (payment_id, level) unique index.
func (s *Service) DisburseForPayment(ctx context.Context, payment *models.PaymentTransaction, purchaser *models.Agent) (*Result, error) {
	result := &Result{}
	if payment == nil || purchaser == nil {
		return result, nil
	}

	ctx = s.logg.WithPaymentID(ctx, payment.ID.String())

	current := purchaser
	seen := map[uuid.UUID]bool{purchaser.ID: true}

	for level, rateBps := range s.rates {
		if current.ReferrerCode == nil || *current.ReferrerCode == "" {
			break
		}
		upline, err := s.agents.FindByCode(ctx, *current.ReferrerCode)
		if err != nil {
			return result, err
		}
		if upline == nil {
			logCtx := s.logg.WithField(ctx, "referrer_code", *current.ReferrerCode)
			s.logg.Warn(logCtx, "referrer code points at no agent, stopping chain walk")
			break
		}
		if seen[upline.ID] {
			logCtx := s.logg.WithAgentID(ctx, upline.ID.String())
			s.logg.Warn(logCtx, "referral cycle detected, stopping chain walk")
			break
		}
		seen[upline.ID] = true
		result.LevelsWalked++

		amountCents := payoutAmountCents(payment.AmountCents, rateBps)
		if amountCents > 0 {
			created, err := s.payouts.Create(ctx, &models.CommissionPayout{
				PaymentID:   payment.ID,
				Level:       level + 1,
				AgentID:     upline.ID,
				AmountCents: amountCents,
				RateBps:     rateBps,
			})
			if err != nil {
				return result, err
			}
			if created {
				result.PayoutsCreated++
				result.TotalCents += amountCents
			} else {
				result.PayoutsSkipped++
			}
		}

		current = upline
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payouts_created": result.PayoutsCreated,
		"payouts_skipped": result.PayoutsSkipped,
		"total_cents":     result.TotalCents,
	})
	s.logg.Info(logCtx, "commission disbursement complete")
	return result, nil
}

// payoutAmountCents applies a basis-point rate to an amount, truncating any
// fractional cent in the house's favor.
func payoutAmountCents(amountCents int64, rateBps int) int64 {
	amount := decimal.NewFromInt(amountCents)
	rate := decimal.NewFromInt(int64(rateBps)).Div(decimal.NewFromInt(bpsDenominator))
	return amount.Mul(rate).Floor().IntPart()
}
