package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq" // required for pq.StringArray
	"gorm.io/gorm"
)

// Gender preference values accepted by the matchmaker.
const (
	SeekAny    = "any"
	SeekMale   = "male"
	SeekFemale = "female"
)

// User is a registered (anonymous) participant.
// The profile fields feed the matchmaker; Coins backs the paid gender filter.
type User struct {
	ID        string         `gorm:"primaryKey" json:"id"` // anonymous UUID
	Gender    string         `json:"gender"`
	Seeking   string         `json:"seeking"` // "any", "male" or "female"
	Interests pq.StringArray `gorm:"type:text[]" json:"interests"`
	Coins     int            `json:"coins"` // balance for paid gender filters
}

// BeforeCreate is a GORM hook executed before a record is inserted.
// It generates a new UUID for the user if the ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Seeking == "" {
		u.Seeking = SeekAny
	}
	return
}
