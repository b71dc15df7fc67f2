package models

import (
	"encoding/json"
	"testing"
)

func TestOutcomeLegacyCode(t *testing.T) {
	cases := map[Outcome]int{
		OutcomeError:   -1,
		OutcomeFailure: 0,
		OutcomeSuccess: 1,
	}
	for o, want := range cases {
		if got := o.LegacyCode(); got != want {
			t.Fatalf("%s: expected legacy code %d, got %d", o, want, got)
		}
	}
}

func TestGateTiersClearsDeeperTiers(t *testing.T) {
	p := GateTiers(ParsedReply{Message: TierFailed, BalanceAgreement: TierSucceeded, Transaction: TierSucceeded})
	if p.BalanceAgreement != TierAbsent || p.Transaction != TierAbsent {
		t.Fatalf("message failure must clear deeper tiers: %+v", p)
	}
	p = GateTiers(ParsedReply{Message: TierSucceeded, BalanceAgreement: TierFailed, Transaction: TierSucceeded})
	if p.BalanceAgreement != TierFailed || p.Transaction != TierAbsent {
		t.Fatalf("agreement failure must clear transaction: %+v", p)
	}
	p = GateTiers(ParsedReply{Message: TierSucceeded, BalanceAgreement: TierSucceeded, Transaction: TierFailed})
	if p.Transaction != TierFailed {
		t.Fatalf("transaction tier must survive when the tiers above succeeded: %+v", p)
	}
}

func TestOperationRequestCopiesParams(t *testing.T) {
	params := map[string]string{"amount": "5"}
	req := NewOperationRequest(OperationRequestInput{NotaryID: " notary-1 ", Operation: "withdraw_cash", Params: params})
	params["amount"] = "500"

	if v, _ := req.Param("amount"); v != "5" {
		t.Fatalf("request must not share the caller's map, got amount=%q", v)
	}
	out := req.Params()
	out["amount"] = "7"
	if v, _ := req.Param("amount"); v != "5" {
		t.Fatalf("Params must return a copy, got amount=%q", v)
	}
	if req.NotaryID() != "notary-1" {
		t.Fatalf("expected trimmed notary id, got %q", req.NotaryID())
	}
}

func TestResultJSONUsesOutcomeNames(t *testing.T) {
	raw, err := json.Marshal(Result{Workflow: "check_identity", Outcome: OutcomeFailure, FailedTier: TierMessage})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["outcome"] != "failure" || decoded["failed_tier"] != "message" {
		t.Fatalf("unexpected json: %s", raw)
	}
}

func TestRawReplyIsEmpty(t *testing.T) {
	if !RawReply(" \n").IsEmpty() || !RawReply(nil).IsEmpty() {
		t.Fatal("blank replies must be empty")
	}
	if RawReply("{}").IsEmpty() {
		t.Fatal("non-blank reply reported empty")
	}
}
