package models

// DefaultProfileID is the profile every request belongs to when
// authentication is disabled.
const DefaultProfileID uint = 1

// Profile is a named account used by the login gate.
type Profile struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"uniqueIndex;not null" json:"name"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsCurrent    bool   `gorm:"not null;default:false" json:"-"`
}
