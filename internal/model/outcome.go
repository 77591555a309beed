package model

// OutcomeStatus enumerates the terminal states of postback processing.
type OutcomeStatus int

const (
	OutcomeOK OutcomeStatus = iota
	OutcomeDuplicate
	OutcomeForbidden
	OutcomeRateLimited
	OutcomeSendFailed
	OutcomeInternalError
	OutcomeNotRouted
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeOK:
		return "ok"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeSendFailed:
		return "send_failed"
	case OutcomeNotRouted:
		return "not_routed"
	default:
		return "internal_error"
	}
}

// Outcome is the result of processing one postback.
type Outcome struct {
	Status  OutcomeStatus
	EventID int64
}

// PostbackResponse is the JSON body returned for every postback. The HTTP
// status is always 200 so the tracker never schedules its own retries.
type PostbackResponse struct {
	OK     bool   `json:"ok"`
	Dedup  bool   `json:"dedup,omitempty"`
	Routed *bool  `json:"routed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Response maps an outcome onto the wire shape.
func (o Outcome) Response() PostbackResponse {
	switch o.Status {
	case OutcomeOK:
		return PostbackResponse{OK: true}
	case OutcomeDuplicate:
		return PostbackResponse{OK: true, Dedup: true}
	case OutcomeNotRouted:
		routed := false
		return PostbackResponse{OK: true, Routed: &routed}
	case OutcomeForbidden:
		return PostbackResponse{OK: false, Error: "forbidden"}
	case OutcomeRateLimited:
		return PostbackResponse{OK: false, Error: "rate_limit_exceeded"}
	case OutcomeSendFailed:
		return PostbackResponse{OK: false, Error: "send_failed"}
	default:
		return PostbackResponse{OK: false, Error: "internal_error"}
	}
}
