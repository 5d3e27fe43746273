package model

// Request/response shapes for the Paystack app's HTTP endpoints.

type InitializePaymentRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"` // minor units (kobo, pesewas)
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type InitializePaymentData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type InitializePaymentResponse struct {
	Status  bool                   `json:"status"`
	Message string                 `json:"message"`
	Data    *InitializePaymentData `json:"data"`
	// Some app versions return the URL at the root instead of under data.
	AuthorizationURL string `json:"authorization_url"`
}

// HostedPageURL returns the authorization URL wherever the app put it.
func (r *InitializePaymentResponse) HostedPageURL() string {
	if r.Data != nil && r.Data.AuthorizationURL != "" {
		return r.Data.AuthorizationURL
	}
	return r.AuthorizationURL
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference"`
}

type VerifyPaymentData struct {
	Status   string `json:"status"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

type VerifyPaymentResponse struct {
	Status  bool               `json:"status"`
	Message string             `json:"message"`
	Data    *VerifyPaymentData `json:"data"`
}

// Verified reports whether the gateway itself considers the charge settled.
// This is advisory only; the backend's transaction record is authoritative.
func (r *VerifyPaymentResponse) Verified() bool {
	return r.Status && r.Data != nil && r.Data.Status == "success"
}
