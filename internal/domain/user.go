package domain

import (
	"strings"
	"time"
)

type Avatar struct {
	PublicID string `json:"public_id" dynamodbav:"public_id"`
	URL      string `json:"url" dynamodbav:"url"`
}

type User struct {
	UserID                string    `json:"id" dynamodbav:"user_id"`
	Name                  string    `json:"name" dynamodbav:"name"`
	Email                 string    `json:"email" dynamodbav:"email"`
	PhoneNumber           string    `json:"phone_number" dynamodbav:"phone_number,omitempty"`
	PasswordHash          string    `json:"-" dynamodbav:"password_hash"`
	Avatar                Avatar    `json:"avatar" dynamodbav:"avatar"`
	IsVerifiedEmail       bool      `json:"is_verified_email" dynamodbav:"is_verified_email"`
	IsVerifiedPhoneNumber bool      `json:"is_verified_phone_number" dynamodbav:"is_verified_phone_number"`
	CreatedAt             time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt             time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Verified reports whether the contact point behind ch has been confirmed.
func (u *User) Verified(ch Channel) bool {
	if ch == ChannelSMS {
		return u.IsVerifiedPhoneNumber
	}
	return u.IsVerifiedEmail
}

// Matches reports whether keyword occurs in the name or email, ignoring case.
// An empty keyword matches every user.
func (u *User) Matches(keyword string) bool {
	if keyword == "" {
		return true
	}
	k := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(u.Name), k) || strings.Contains(strings.ToLower(u.Email), k)
}

// UserPatch is a partial update; nil fields are left untouched.
type UserPatch struct {
	Name                  *string
	Email                 *string
	PhoneNumber           *string
	PasswordHash          *string
	Avatar                *Avatar
	IsVerifiedEmail       *bool
	IsVerifiedPhoneNumber *bool
}

// Apply copies the non-nil fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.IsVerifiedEmail != nil {
		u.IsVerifiedEmail = *p.IsVerifiedEmail
	}
	if p.IsVerifiedPhoneNumber != nil {
		u.IsVerifiedPhoneNumber = *p.IsVerifiedPhoneNumber
	}
}

// VerifiedPatch builds the patch that marks ch as verified.
func VerifiedPatch(ch Channel) UserPatch {
	t := true
	if ch == ChannelSMS {
		return UserPatch{IsVerifiedPhoneNumber: &t}
	}
	return UserPatch{IsVerifiedEmail: &t}
}
