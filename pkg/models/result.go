package models

// Result is what a workflow hands back to the application layer.
type Result struct {
	Workflow   string       `json:"workflow"`
	Operation  string       `json:"operation"`
	Outcome    Outcome      `json:"outcome"`
	FailedTier Tier         `json:"failed_tier,omitempty"`
	RequestID  string       `json:"request_id,omitempty"`
	Attempts   int          `json:"attempts"`
	Parsed     *ParsedReply `json:"reply,omitempty"`
	Raw        RawReply     `json:"-"`
	Err        error        `json:"-"`
}

// Succeeded is shorthand for Outcome == OutcomeSuccess.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// ErrorText returns the cause as a string, or "" when there is none.
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
