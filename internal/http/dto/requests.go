package dto

type CreateEscrowRequest struct {
	Title    string         `json:"title"`
	Amount   int64          `json:"amount"` // minor currency units
	Currency string         `json:"currency"`
	BuyerID  string         `json:"buyer_id"`
	SellerID string         `json:"seller_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
