package types

// SuccessEnvelope wraps every JSON success body. Message repeats the flash a browser would
// have been shown for the same action.
type SuccessEnvelope struct {
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// APIError is the body of a failed request. Messages lists one user-facing line per invalid
// field when the failure carries them.
type APIError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"`
	Details  any      `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
