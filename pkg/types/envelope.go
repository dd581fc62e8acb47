package types

// SuccessEnvelope wraps successful API responses.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorEnvelope wraps error API responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// APIError is the public error payload.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
