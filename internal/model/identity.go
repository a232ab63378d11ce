package model

// Identity is the acting user as supplied by the identity provider. It is written verbatim
// into every document the user creates.
type Identity struct {
	UserID      string `json:"userId" validate:"required"`
	DisplayName string `json:"displayName"`
}
