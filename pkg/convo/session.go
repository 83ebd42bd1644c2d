package convo

import "time"

// Session is one end-to-end phone call tracked by the system.
type Session struct {
	ID             string
	Destination    string
	VoiceName      string
	OpeningMessage string
	Status         Status
	Summary        string
	ProviderSID    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
