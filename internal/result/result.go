// Package result defines the uniform outcome shape every core operation
// returns to its caller. Services never let errors escape; they convert
// them into a failed Result with a human-readable message.
package result

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// Optional payload, populated per operation.
	OrderID     uint   `json:"order_id,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

func Ok(message string) Result {
	return Result{Success: true, Message: message}
}

func Fail(message string) Result {
	return Result{Success: false, Message: message}
}
