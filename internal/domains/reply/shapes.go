package reply

import (
	"fmt"
	"sort"
	"strings"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/pkg/models"
)

// Operation names understood by the client.
const (
	OpCheckUser        = "check_user"
	OpGetMint          = "get_mint"
	OpGetRequestNumber = "get_request_number"
	OpWithdrawCash     = "withdraw_cash"
	OpWithdrawVoucher  = "withdraw_voucher"
	OpDepositCash      = "deposit_cash"
	OpDepositCheque    = "deposit_cheque"
	OpSendTransfer     = "send_transfer"
	OpProcessInbox     = "process_inbox"
	OpIssueMarketOffer = "issue_market_offer"
)

const (
	commandNotarizeTransaction = "@notarizeTransaction"

	itemBalanceStatement     = "balanceStatement"
	itemTransactionStatement = "transactionStatement"
)

// Shape knows where one operation's reply keeps its tier statuses.
type Shape interface {
	Operation() string
	ReplyCommand() string
	// Transactional reports whether the reply carries balance agreement and
	// transaction tiers, and whether the request mutates server state.
	Transactional() bool
	// RequiresMint reports whether a mint must be loaded before submitting.
	RequiresMint() bool

	tiers(env Envelope) (agreement, transaction models.TierStatus, err error)
}

// messageShape covers non-transactional requests; deeper tiers do not apply.
type messageShape struct {
	operation string
	command   string
}

func (s messageShape) Operation() string    { return s.operation }
func (s messageShape) ReplyCommand() string { return s.command }
func (s messageShape) Transactional() bool  { return false }
func (s messageShape) RequiresMint() bool   { return false }

func (s messageShape) tiers(Envelope) (models.TierStatus, models.TierStatus, error) {
	return models.TierAbsent, models.TierAbsent, nil
}

// transactionShape covers requests notarized as a transaction. The balance
// agreement lives in agreementItem; the transaction verdict lives in the
// item of type item, or in every non-agreement item when allItems is set.
type transactionShape struct {
	operation     string
	txType        string
	agreementItem string
	item          string
	allItems      bool
	needsMint     bool
}

func (s transactionShape) Operation() string    { return s.operation }
func (s transactionShape) ReplyCommand() string { return commandNotarizeTransaction }
func (s transactionShape) Transactional() bool  { return true }
func (s transactionShape) RequiresMint() bool   { return s.needsMint }

func (s transactionShape) tiers(env Envelope) (models.TierStatus, models.TierStatus, error) {
	tx, ok := env.Ledger.transaction(s.txType)
	if !ok {
		return models.TierAbsent, models.TierAbsent, contracts.NewParseError("missing_transaction",
			fmt.Errorf("reply to %s has no %q transaction", s.operation, s.txType))
	}
	agreement := itemStatus(tx.item(s.agreementItem))
	if tx.Success != nil && !*tx.Success {
		return agreement, models.TierFailed, nil
	}
	if !s.allItems {
		return agreement, itemStatus(tx.item(s.item)), nil
	}
	status := models.TierAbsent
	for _, it := range tx.Items {
		if it.Type == s.agreementItem {
			continue
		}
		if it.Status != StatusAcknowledgement {
			return agreement, models.TierFailed, nil
		}
		status = models.TierSucceeded
	}
	return agreement, status, nil
}

// Shapes is a registry of reply shapes keyed by operation name.
type Shapes struct {
	byOperation map[string]Shape
}

func NewShapes(shapes ...Shape) *Shapes {
	reg := &Shapes{byOperation: make(map[string]Shape, len(shapes))}
	for _, s := range shapes {
		reg.byOperation[s.Operation()] = s
	}
	return reg
}

var defaultShapes = NewShapes(
	messageShape{operation: OpCheckUser, command: "@checkNym"},
	messageShape{operation: OpGetMint, command: "@getMint"},
	messageShape{operation: OpGetRequestNumber, command: "@getRequestNumber"},
	transactionShape{operation: OpWithdrawCash, txType: "withdrawal", agreementItem: itemBalanceStatement, item: "withdrawal", needsMint: true},
	transactionShape{operation: OpWithdrawVoucher, txType: "withdrawal", agreementItem: itemBalanceStatement, item: "withdrawVoucher"},
	transactionShape{operation: OpDepositCash, txType: "deposit", agreementItem: itemBalanceStatement, item: "deposit"},
	transactionShape{operation: OpDepositCheque, txType: "deposit", agreementItem: itemBalanceStatement, item: "depositCheque"},
	transactionShape{operation: OpSendTransfer, txType: "transfer", agreementItem: itemBalanceStatement, item: "transfer"},
	transactionShape{operation: OpProcessInbox, txType: "processInbox", agreementItem: itemBalanceStatement, allItems: true},
	transactionShape{operation: OpIssueMarketOffer, txType: "marketOffer", agreementItem: itemTransactionStatement, item: "marketOffer"},
)

// DefaultShapes returns the built-in registry.
func DefaultShapes() *Shapes {
	return defaultShapes
}

func (r *Shapes) Lookup(operation string) (Shape, bool) {
	s, ok := r.byOperation[strings.TrimSpace(operation)]
	return s, ok
}

// Operations lists registered operation names, sorted.
func (r *Shapes) Operations() []string {
	out := make([]string, 0, len(r.byOperation))
	for op := range r.byOperation {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

func (r *Shapes) Parse(operation string, raw models.RawReply) (models.ParsedReply, error) {
	shape, ok := r.Lookup(operation)
	if !ok {
		return models.ParsedReply{}, contracts.NewParseError("unknown_operation",
			fmt.Errorf("%w: %q", contracts.ErrUnknownOperation, operation))
	}
	env, err := Decode(raw)
	if err != nil {
		return models.ParsedReply{}, err
	}
	return parseWithShape(shape, env)
}

func parseWithShape(shape Shape, env Envelope) (models.ParsedReply, error) {
	if env.Command != shape.ReplyCommand() {
		return models.ParsedReply{}, contracts.NewParseError("unexpected_command",
			fmt.Errorf("expected %q for %s, got %q", shape.ReplyCommand(), shape.Operation(), env.Command))
	}
	parsed := baseParsed(shape.Operation(), env)
	if parsed.Message != models.TierSucceeded || !shape.Transactional() {
		return models.GateTiers(parsed), nil
	}
	agreement, transaction, err := shape.tiers(env)
	if err != nil {
		return models.ParsedReply{}, err
	}
	parsed.BalanceAgreement = agreement
	parsed.Transaction = transaction
	return models.GateTiers(parsed), nil
}
