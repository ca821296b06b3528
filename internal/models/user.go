package models

// UserSummary is the slice of the external user directory this service
// renders into system messages and sender snapshots.
type UserSummary struct {
	ID        string `bson:"_id" json:"id"`
	Username  string `bson:"username" json:"username"`
	FullName  string `bson:"fullName" json:"fullName"`
	AvatarURL string `bson:"avatarUrl" json:"avatarUrl"`
}

// DisplayName prefers the full name, then the username, then the raw id.
func (u UserSummary) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
