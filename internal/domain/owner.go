package domain

import "time"

// Owner is the profile that owns transactions and bank accounts. The
// downstream publisher needs at least a name and email to address the
// outbound message.
type Owner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateIdentity checks the minimum identity fields required to publish
// on the owner's behalf.
func (o *Owner) ValidateIdentity() error {
	if o.Name == "" || o.Email == "" {
		return ErrOwnerIdentityMissing
	}

	return nil
}
