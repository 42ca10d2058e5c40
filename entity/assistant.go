package entity

// AssistantReply is the outcome of one assistant dispatch round: the
// final text (possibly empty on escalation), the audit trail of every
// tool invocation made while composing it, and whether the session
// must be handed to a human.
type AssistantReply struct {
	Text           string     `json:"text"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	Escalate       bool       `json:"escalate"`
	EscalateReason string     `json:"escalate_reason,omitempty"`
}
