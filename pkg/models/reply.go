package models

// ParsedReply is the structured view of a reply. Deeper tiers are only
// meaningful when every tier above them succeeded; GateTiers enforces that.
type ParsedReply struct {
	Operation        string     `json:"operation"`
	Command          string     `json:"command"`
	RequestNumber    int64      `json:"request_num"`
	RequestID        string     `json:"request_id,omitempty"`
	NotaryID         string     `json:"notary_id"`
	NymID            string     `json:"nym_id"`
	AccountID        string     `json:"account_id,omitempty"`
	Payload          string     `json:"-"`
	Message          TierStatus `json:"message"`
	BalanceAgreement TierStatus `json:"balance_agreement"`
	Transaction      TierStatus `json:"transaction"`
}

// GateTiers clears every tier below the first one that did not succeed.
func GateTiers(p ParsedReply) ParsedReply {
	if p.Message != TierSucceeded {
		p.BalanceAgreement = TierAbsent
		p.Transaction = TierAbsent
		return p
	}
	if p.BalanceAgreement != TierSucceeded {
		p.Transaction = TierAbsent
	}
	return p
}
