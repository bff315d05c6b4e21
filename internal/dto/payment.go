package dto

// CreatePaymentIntentRequest starts a purchase of a bundle.
type CreatePaymentIntentRequest struct {
	BundleID string `json:"bundleId" validate:"required"`
}

// PaymentIntentResponse hands the client what it needs to complete payment.
type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	PurchaseID   string `json:"purchaseId"`
}

// ConfirmPaymentRequest reports the provider outcome for a purchase.
type ConfirmPaymentRequest struct {
	BundleID string `json:"bundleId" validate:"required"`
	Payment  bool   `json:"payment"`
}
