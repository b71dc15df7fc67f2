package models

// Outcome is the tri-state verdict on a server reply.
type Outcome int

const (
	// OutcomeError means the result is inconclusive: no reply, an unparseable
	// reply or a transport failure. The server may still have acted.
	OutcomeError Outcome = iota
	// OutcomeFailure means the server conclusively rejected the request at
	// some tier.
	OutcomeFailure
	// OutcomeSuccess means every applicable tier passed.
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailure:
		return "failure"
	case OutcomeSuccess:
		return "success"
	default:
		return "error"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// LegacyCode maps the outcome onto the -1/0/1 convention used by older
// command line clients. It exists for process exit codes only.
func (o Outcome) LegacyCode() int {
	switch o {
	case OutcomeFailure:
		return 0
	case OutcomeSuccess:
		return 1
	default:
		return -1
	}
}

// Tier names the verification layer at which an outcome was decided.
type Tier string

const (
	TierNone             Tier = ""
	TierPrerequisite     Tier = "prerequisite"
	TierTransport        Tier = "transport"
	TierMessage          Tier = "message"
	TierBalanceAgreement Tier = "balance_agreement"
	TierTransaction      Tier = "transaction"
)

// TierStatus is the state of one verification layer inside a parsed reply.
type TierStatus int

const (
	TierAbsent TierStatus = iota
	TierSucceeded
	TierFailed
)

func (s TierStatus) String() string {
	switch s {
	case TierSucceeded:
		return "succeeded"
	case TierFailed:
		return "failed"
	default:
		return "absent"
	}
}

func (s TierStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Verdict is an outcome together with the tier that decided it.
type Verdict struct {
	Outcome Outcome
	Tier    Tier
	Cause   error
}
