package models

// CardDetails is the card data captured at checkout. It never leaves the
// process in full; only the last four digits and a masked token are sent.
type CardDetails struct {
	Number     string
	ExpMonth   int
	ExpYear    int
	CVC        string
	HolderName string
}

// PaymentResult is the outcome of a payment attempt
type PaymentResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
	// Simulated is set when success was assumed rather than confirmed
	Simulated bool `json:"simulated,omitempty"`
}
