package chessdto

// DomainError is the payload of an error frame.
type DomainError struct {
	Success    bool     `json:"success"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Retryable  bool     `json:"retryable,omitempty"`
	ValidMoves []string `json:"validMoves,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "game service error"
}
