package models

import "time"

// User represents a user account in the system.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	Email        string    `json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"` // Never expose this to the client
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// Sanitized returns a copy of the user with the password hash cleared.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// UserPage is one page of the paginated user listing.
type UserPage struct {
	Users       []User `json:"users"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
}

// DeleteResult acknowledges a deleted user.
type DeleteResult struct {
	ID      uint `json:"id"`
	Deleted bool `json:"deleted"`
}
