package entities

// User is a dashboard account. Guests are not Users; only tenant staff
// logging into the admin surface are stored here.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"` // "admin" or "agent"
}

// GuestIdentity is the anonymous visitor identity persisted per tenant.
// GuestID is generated once and kept indefinitely; contact fields are
// filled on registration so returning visitors skip the form.
type GuestIdentity struct {
	GuestID string `json:"guestId"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

// Registered reports whether the identity carries enough contact detail
// to skip the registration form.
func (g GuestIdentity) Registered() bool {
	return g.Name != "" && g.Phone != ""
}
