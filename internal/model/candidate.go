package model

// Candidate is the identity of the person taking a quiz. It is supplied by
// the user directory and never modified here.
type Candidate struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	RollNumber  string `json:"roll_number,omitempty"`
}
