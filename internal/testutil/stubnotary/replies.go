// Package stubnotary provides canned notary replies, an HTTP handler that
// serves them and a counting in-memory transport for tests.
package stubnotary

import (
	"encoding/json"
	"strconv"

	"otme/go-client/internal/domains/reply"
	"otme/go-client/pkg/models"
)

// Tiers selects which layers of a reply report success.
type Tiers struct {
	Message     bool
	Agreement   bool
	Transaction bool
	Payload     string
	// OmitLedger drops the ledger even for transactional operations.
	OmitLedger bool
}

var AllOK = Tiers{Message: true, Agreement: true, Transaction: true}

// ServerRequestNumber is what get_request_number replies carry unless a
// payload is given.
const ServerRequestNumber int64 = 100

// MintPayload is the default get_mint payload for an asset.
func MintPayload(assetID string) string {
	return "mint:" + assetID
}

type layout struct {
	command   string
	txType    string
	agreement string
	item      string
}

const notarize = "@notarizeTransaction"

var layouts = map[string]layout{
	reply.OpCheckUser:        {command: "@checkNym"},
	reply.OpGetMint:          {command: "@getMint"},
	reply.OpGetRequestNumber: {command: "@getRequestNumber"},
	reply.OpWithdrawCash:     {command: notarize, txType: "withdrawal", agreement: "balanceStatement", item: "withdrawal"},
	reply.OpWithdrawVoucher:  {command: notarize, txType: "withdrawal", agreement: "balanceStatement", item: "withdrawVoucher"},
	reply.OpDepositCash:      {command: notarize, txType: "deposit", agreement: "balanceStatement", item: "deposit"},
	reply.OpDepositCheque:    {command: notarize, txType: "deposit", agreement: "balanceStatement", item: "depositCheque"},
	reply.OpSendTransfer:     {command: notarize, txType: "transfer", agreement: "balanceStatement", item: "transfer"},
	reply.OpProcessInbox:     {command: notarize, txType: "processInbox", agreement: "balanceStatement", item: "acceptPending"},
	reply.OpIssueMarketOffer: {command: notarize, txType: "marketOffer", agreement: "transactionStatement", item: "marketOffer"},
}

func status(ok bool) string {
	if ok {
		return reply.StatusAcknowledgement
	}
	return reply.StatusRejection
}

// Reply renders the envelope a notary would send back for req.
func Reply(req models.OperationRequest, tiers Tiers) models.RawReply {
	l, ok := layouts[req.Operation()]
	if !ok {
		l = layout{command: "@" + req.Operation()}
	}
	payload := tiers.Payload
	if payload == "" && tiers.Message {
		switch req.Operation() {
		case reply.OpGetMint:
			payload = MintPayload(req.AssetID())
		case reply.OpGetRequestNumber:
			payload = strconv.FormatInt(ServerRequestNumber, 10)
		}
	}
	env := reply.Envelope{
		Type:          "reply",
		Command:       l.command,
		RequestNumber: req.RequestNumber(),
		RequestID:     req.RequestID(),
		NotaryID:      req.NotaryID(),
		NymID:         req.NymID(),
		Success:       tiers.Message,
		Payload:       payload,
	}
	if l.txType != "" && !tiers.OmitLedger {
		env.Ledger = &reply.Ledger{
			AccountID: req.AccountID(),
			Transactions: []reply.Transaction{{
				Type:   l.txType,
				Number: req.RequestNumber() + 1000,
				Items: []reply.Item{
					{Type: l.agreement, Status: status(tiers.Agreement)},
					{Type: l.item, Status: status(tiers.Transaction)},
				},
			}},
		}
	}
	raw, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	return raw
}

// Request builds a request the way the dispatcher would, for tests that
// exercise the interpreter directly.
func Request(notaryID, nymID, accountID, operation string) models.OperationRequest {
	return models.NewOperationRequest(models.OperationRequestInput{
		NotaryID:      notaryID,
		NymID:         nymID,
		AccountID:     accountID,
		Operation:     operation,
		RequestNumber: 7,
		RequestID:     "req-" + operation,
	})
}
