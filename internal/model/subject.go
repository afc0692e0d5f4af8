package model

// Subject is whoever is spinning or redeeming: a registered user or a guest.
// Guests are identified by GuestID; SessionID changes per session and is never
// part of the identity.
type Subject struct {
	UserID    string
	GuestID   string
	SessionID string
	Tier      string
}

// IsGuest reports whether the subject has no registered user id.
func (s Subject) IsGuest() bool {
	return s.UserID == ""
}

// Key is the stable storage identity used for spin windows and usage ledgers.
func (s Subject) Key() string {
	if s.IsGuest() {
		return "guest:" + s.GuestID
	}
	return "user:" + s.UserID
}

// Valid reports whether the subject carries any identity at all.
func (s Subject) Valid() bool {
	return s.UserID != "" || s.GuestID != ""
}
