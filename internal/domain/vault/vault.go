package vault

import (
	"errors"
	"time"
)

var ErrEntryNotFound = errors.New("vault entry not found")

// Entry is one stored credential. EncryptedPassword is nonce||ciphertext.
type Entry struct {
	ID                string
	OwnerID           string
	HubName           string
	Email             string
	EncryptedPassword []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EntryView is the owner-facing shape with the password decrypted.
type EntryView struct {
	ID        string    `json:"id"`
	HubName   string    `json:"hubName"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateEntryInput struct {
	HubName  string `json:"hubName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=512"`
}

type UpdateEntryInput struct {
	HubName  *string `json:"hubName" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,min=1,max=254"`
	Password *string `json:"password" validate:"omitempty,min=1,max=512"`
}

func (in UpdateEntryInput) Empty() bool {
	return in.HubName == nil && in.Email == nil && in.Password == nil
}

// Patch is the store-level partial update; nil fields are left unchanged.
type Patch struct {
	HubName           *string
	Email             *string
	EncryptedPassword []byte
}

type NewEntry struct {
	OwnerID           string
	HubName           string
	Email             string
	EncryptedPassword []byte
}
