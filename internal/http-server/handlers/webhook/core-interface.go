package webhook

// Payments verifies and applies payment-provider events.
type Payments interface {
	VerifySignature(body []byte, signature string) error
	HandleWebhook(body []byte) error
}
