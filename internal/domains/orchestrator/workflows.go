package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/internal/domains/dispatch"
	"otme/go-client/internal/domains/reply"
	"otme/go-client/pkg/models"

	"github.com/google/uuid"
)

// TransactionRequest names a transaction-bearing operation and its inputs.
type TransactionRequest struct {
	NotaryID  string
	NymID     string
	AccountID string
	AssetID   string
	Operation string
	Params    map[string]string
}

// CheckIdentity asks notaryID about targetNymID on behalf of nymID. Only
// the message tier applies.
func (o *Orchestrator) CheckIdentity(ctx context.Context, notaryID, nymID, targetNymID string) models.Result {
	corr := uuid.NewString()
	if strings.TrimSpace(targetNymID) == "" {
		return o.finish(localError(WorkflowCheckIdentity, reply.OpCheckUser, errors.New("target nym id is required")), corr, notaryID, nymID)
	}
	shape, ok := o.interpreter.Shapes().Lookup(reply.OpCheckUser)
	if !ok {
		return o.finish(localError(WorkflowCheckIdentity, reply.OpCheckUser, contracts.ErrUnknownOperation), corr, notaryID, nymID)
	}

	unlock := o.locks.acquire(identityKey(notaryID, nymID))
	defer unlock()

	res := o.run(ctx, step{
		workflow: WorkflowCheckIdentity,
		call: dispatch.Call{
			NotaryID:      notaryID,
			NymID:         nymID,
			Params:        map[string]string{"target_nym_id": strings.TrimSpace(targetNymID)},
			CorrelationID: corr,
		},
		shape:  shape,
		resync: true,
	})
	return o.finish(res, corr, notaryID, nymID)
}

// LoadOrRetrieveMint returns Success without touching the network when the
// wallet already holds the mint; otherwise it downloads and stores it.
func (o *Orchestrator) LoadOrRetrieveMint(ctx context.Context, notaryID, nymID, assetID string) models.Result {
	corr := uuid.NewString()
	unlock := o.locks.acquire(identityKey(notaryID, nymID))
	defer unlock()
	return o.finish(o.loadMint(ctx, notaryID, nymID, assetID, corr), corr, notaryID, nymID)
}

func (o *Orchestrator) loadMint(ctx context.Context, notaryID, nymID, assetID, corr string) models.Result {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return localError(WorkflowLoadMint, reply.OpGetMint, errors.New("asset id is required"))
	}
	_, found, err := o.store.LoadMint(notaryID, assetID)
	if err != nil {
		return models.Result{
			Workflow:  WorkflowLoadMint,
			Operation: reply.OpGetMint,
			Outcome:   models.OutcomeError,
			Err:       contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, err),
		}
	}
	if found {
		return models.Result{Workflow: WorkflowLoadMint, Operation: reply.OpGetMint, Outcome: models.OutcomeSuccess}
	}

	shape, ok := o.interpreter.Shapes().Lookup(reply.OpGetMint)
	if !ok {
		return localError(WorkflowLoadMint, reply.OpGetMint, contracts.ErrUnknownOperation)
	}
	res := o.run(ctx, step{
		workflow: WorkflowLoadMint,
		call: dispatch.Call{
			NotaryID:      notaryID,
			NymID:         nymID,
			AssetID:       assetID,
			Params:        map[string]string{"asset_id": assetID},
			CorrelationID: corr,
		},
		shape:  shape,
		resync: true,
	})
	if !res.Succeeded() {
		return res
	}
	if strings.TrimSpace(res.Parsed.Payload) == "" {
		res.Outcome, res.FailedTier = models.OutcomeError, models.TierMessage
		res.Err = contracts.NewParseError("empty_mint", fmt.Errorf("mint reply for %s carries no payload", assetID))
		return res
	}
	if err := o.store.SaveMint(notaryID, assetID, []byte(res.Parsed.Payload)); err != nil {
		res.Outcome, res.FailedTier = models.OutcomeError, models.TierNone
		res.Err = contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, err)
	}
	return res
}

// PerformTransaction submits a transaction-bearing operation. A mint
// prerequisite that does not succeed aborts the workflow before the
// operation is sent, and the result names the prerequisite tier.
func (o *Orchestrator) PerformTransaction(ctx context.Context, req TransactionRequest) models.Result {
	return o.performTransaction(ctx, WorkflowPerformTransaction, req)
}

// WithdrawCash is PerformTransaction for withdraw_cash with an amount.
func (o *Orchestrator) WithdrawCash(ctx context.Context, notaryID, nymID, accountID, assetID string, amount int64) models.Result {
	if amount <= 0 {
		return o.finish(localError(WorkflowWithdrawCash, reply.OpWithdrawCash,
			fmt.Errorf("amount must be positive, got %d", amount)), uuid.NewString(), notaryID, nymID)
	}
	return o.performTransaction(ctx, WorkflowWithdrawCash, TransactionRequest{
		NotaryID:  notaryID,
		NymID:     nymID,
		AccountID: accountID,
		AssetID:   assetID,
		Operation: reply.OpWithdrawCash,
		Params:    map[string]string{"amount": strconv.FormatInt(amount, 10)},
	})
}

func (o *Orchestrator) performTransaction(ctx context.Context, workflow string, req TransactionRequest) models.Result {
	corr := uuid.NewString()
	op := strings.TrimSpace(req.Operation)
	shape, ok := o.interpreter.Shapes().Lookup(op)
	switch {
	case !ok:
		return o.finish(localError(workflow, op, fmt.Errorf("%w: %q", contracts.ErrUnknownOperation, op)), corr, req.NotaryID, req.NymID)
	case !shape.Transactional():
		return o.finish(localError(workflow, op, fmt.Errorf("%s is not a transaction", op)), corr, req.NotaryID, req.NymID)
	case strings.TrimSpace(req.AccountID) == "":
		return o.finish(localError(workflow, op, errors.New("account id is required")), corr, req.NotaryID, req.NymID)
	}

	unlock := o.locks.acquire(identityKey(req.NotaryID, req.NymID))
	defer unlock()

	if o.InDoubt(req.NotaryID, req.NymID) {
		synced := o.resync(ctx, req.NotaryID, req.NymID, corr)
		if !synced.Succeeded() {
			res := models.Result{
				Workflow:   workflow,
				Operation:  op,
				Outcome:    models.OutcomeError,
				FailedTier: models.TierPrerequisite,
				Attempts:   synced.Attempts,
				Err:        fmt.Errorf("resynchronize before %s: %w", op, synced.Err),
			}
			return o.finish(res, corr, req.NotaryID, req.NymID)
		}
	}

	if shape.RequiresMint() {
		mint := o.loadMint(ctx, req.NotaryID, req.NymID, req.AssetID, corr)
		if !mint.Succeeded() {
			res := models.Result{
				Workflow:   workflow,
				Operation:  op,
				Outcome:    mint.Outcome,
				FailedTier: models.TierPrerequisite,
				RequestID:  mint.RequestID,
				Attempts:   mint.Attempts,
				Parsed:     mint.Parsed,
				Raw:        mint.Raw,
				Err:        mint.Err,
			}
			return o.finish(res, corr, req.NotaryID, req.NymID)
		}
	}

	res := o.run(ctx, step{
		workflow: workflow,
		call: dispatch.Call{
			NotaryID:      req.NotaryID,
			NymID:         req.NymID,
			AccountID:     req.AccountID,
			AssetID:       req.AssetID,
			Params:        req.Params,
			CorrelationID: corr,
		},
		shape:  shape,
		resync: true,
	})
	return o.finish(res, corr, req.NotaryID, req.NymID)
}

// Resynchronize fetches the server's request number for the identity.
func (o *Orchestrator) Resynchronize(ctx context.Context, notaryID, nymID string) models.Result {
	corr := uuid.NewString()
	unlock := o.locks.acquire(identityKey(notaryID, nymID))
	defer unlock()
	return o.finish(o.resync(ctx, notaryID, nymID, corr), corr, notaryID, nymID)
}
