package model

import (
	"fmt"
	"strings"
)

// Profile is a user profile record. Its ID equals the identity provider's
// user ID, the join key between authentication and storage. Persisted in the
// local "profiles" table and the remote "users" collection.
type Profile struct {
	ID    string   `bson:"_id" json:"id"`
	Email string   `bson:"email" json:"email"`
	Name  string   `bson:"name" json:"name"`
	Image ImageRef `bson:"image" json:"image"`

	// CreatedAt is epoch milliseconds, assigned once at creation.
	CreatedAt int64 `bson:"createdAt" json:"createdAt"`
}

// Validate checks caller-supplied profile fields.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: profile ID is required", ErrInvalid)
	}
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalid)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: display name is required", ErrInvalid)
	}
	return nil
}
