package person

import "github.com/google/uuid"

// Person is a patient or practitioner that notifications can be addressed to.
type Person struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	PushToken string    `json:"push_token,omitempty"`
}
