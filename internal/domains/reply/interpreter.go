package reply

import (
	"fmt"
	"strings"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/pkg/models"
)

// Interpreter turns raw replies into outcomes. It never retries and never
// hides ambiguity: anything it cannot read is OutcomeError.
type Interpreter struct {
	shapes *Shapes
}

func NewInterpreter(shapes *Shapes) *Interpreter {
	if shapes == nil {
		shapes = DefaultShapes()
	}
	return &Interpreter{shapes: shapes}
}

func (i *Interpreter) Shapes() *Shapes {
	return i.shapes
}

// VerifyMessageSuccess checks only the message tier.
func (i *Interpreter) VerifyMessageSuccess(raw models.RawReply) models.Outcome {
	return i.EvaluateMessage(raw).Outcome
}

func (i *Interpreter) EvaluateMessage(raw models.RawReply) models.Verdict {
	env, err := Decode(raw)
	if err != nil {
		return models.Verdict{Outcome: models.OutcomeError, Tier: models.TierMessage, Cause: err}
	}
	if !env.Success {
		return models.Verdict{
			Outcome: models.OutcomeFailure,
			Tier:    models.TierMessage,
			Cause:   &contracts.VerificationFailure{Tier: models.TierMessage, Operation: env.Command},
		}
	}
	return models.Verdict{Outcome: models.OutcomeSuccess}
}

// InterpretTransactionReply walks message, balance agreement and
// transaction tiers in that order and stops at the first one that did not
// succeed.
func (i *Interpreter) InterpretTransactionReply(notaryID, nymID, accountID, operation string, raw models.RawReply) models.Outcome {
	return i.EvaluateTransaction(notaryID, nymID, accountID, operation, raw).Outcome
}

func (i *Interpreter) EvaluateTransaction(notaryID, nymID, accountID, operation string, raw models.RawReply) models.Verdict {
	parsed, err := i.ParseFor(notaryID, nymID, accountID, operation, raw)
	if err != nil {
		return models.Verdict{Outcome: models.OutcomeError, Tier: models.TierMessage, Cause: err}
	}
	return VerdictOf(parsed, i.transactional(operation))
}

// ParseFor parses raw for operation and checks that the reply belongs to
// the given notary, nym and account. Empty identifiers are not checked.
func (i *Interpreter) ParseFor(notaryID, nymID, accountID, operation string, raw models.RawReply) (models.ParsedReply, error) {
	parsed, err := i.shapes.Parse(operation, raw)
	if err != nil {
		return models.ParsedReply{}, err
	}
	if err := checkIdentity("notary", notaryID, parsed.NotaryID); err != nil {
		return models.ParsedReply{}, err
	}
	if err := checkIdentity("nym", nymID, parsed.NymID); err != nil {
		return models.ParsedReply{}, err
	}
	if parsed.AccountID != "" {
		if err := checkIdentity("account", accountID, parsed.AccountID); err != nil {
			return models.ParsedReply{}, err
		}
	}
	return parsed, nil
}

func (i *Interpreter) transactional(operation string) bool {
	shape, ok := i.shapes.Lookup(operation)
	return ok && shape.Transactional()
}

// VerdictOf maps a gated parsed reply onto an outcome.
func VerdictOf(parsed models.ParsedReply, transactional bool) models.Verdict {
	parsed = models.GateTiers(parsed)
	if parsed.Message != models.TierSucceeded {
		return failureAt(models.TierMessage, parsed.Operation)
	}
	if !transactional {
		return models.Verdict{Outcome: models.OutcomeSuccess}
	}
	if parsed.BalanceAgreement != models.TierSucceeded {
		return failureAt(models.TierBalanceAgreement, parsed.Operation)
	}
	if parsed.Transaction != models.TierSucceeded {
		return failureAt(models.TierTransaction, parsed.Operation)
	}
	return models.Verdict{Outcome: models.OutcomeSuccess}
}

func failureAt(tier models.Tier, operation string) models.Verdict {
	return models.Verdict{
		Outcome: models.OutcomeFailure,
		Tier:    tier,
		Cause:   &contracts.VerificationFailure{Tier: tier, Operation: operation},
	}
}

func checkIdentity(label, want, got string) error {
	want = strings.TrimSpace(want)
	if want == "" || want == strings.TrimSpace(got) {
		return nil
	}
	// Ids stay out of the text; errors end up in logs verbatim.
	return contracts.NewParseError("identity_mismatch", fmt.Errorf("reply %s id does not match the request", label))
}
