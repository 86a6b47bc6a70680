package domain

// Contact holds the delivery destinations registered for an owner. Empty
// fields mean the owner cannot be reached on that channel.
type Contact struct {
	OwnerID   string `json:"owner_id"`
	Email     string `json:"email,omitempty"`
	PushToken string `json:"push_token,omitempty"`
}

// Destination returns the address for channel c, or "" if none is registered.
func (c *Contact) Destination(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return c.Email
	case ChannelPush:
		return c.PushToken
	default:
		return ""
	}
}
