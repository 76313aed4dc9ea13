package models

// Link associates a professional with a visiting location. The remote store
// tolerates duplicate pairs; the resolver merely avoids redundant creation
// when a matching link was already observed.
type Link struct {
	ID             int64  `json:"id,omitempty"`
	ProfessionalID int64  `json:"idPrescritor"`
	LocationID     int64  `json:"idEndereco"`
	UserID         string `json:"idUsuario,omitempty"`
}

// Matches reports whether the link covers the given pair.
func (l *Link) Matches(professionalID, locationID int64) bool {
	return l.ProfessionalID == professionalID && l.LocationID == locationID
}
