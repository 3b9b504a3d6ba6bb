package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type CreateEscrowResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	FundingRef string `json:"funding_ref"`
}

type ActionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// WebhookResponse acknowledges an inbound provider event; status is one of
// processed, duplicate or ignored.
type WebhookResponse struct {
	Status string `json:"status"`
}
