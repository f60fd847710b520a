package domain

import "time"

// Channel is the contact point a token travels over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Purpose scopes a token; a user holds at most one token per purpose.
type Purpose string

const (
	PurposeEmailVerify        Purpose = "email_verify"
	PurposePhoneVerify        Purpose = "phone_verify"
	PurposePasswordResetEmail Purpose = "password_reset_email"
	PurposePasswordResetPhone Purpose = "password_reset_phone"
)

// Channel returns the channel the token for p is delivered over.
func (p Purpose) Channel() Channel {
	switch p {
	case PurposePhoneVerify, PurposePasswordResetPhone:
		return ChannelSMS
	default:
		return ChannelEmail
	}
}

// IsRecovery reports whether p authorizes a password reset.
func (p Purpose) IsRecovery() bool {
	return p == PurposePasswordResetEmail || p == PurposePasswordResetPhone
}

// VerifyPurpose maps a channel to its ownership-verification purpose.
func VerifyPurpose(ch Channel) Purpose {
	if ch == ChannelSMS {
		return PurposePhoneVerify
	}
	return PurposeEmailVerify
}

// ResetPurpose maps a channel to its password-reset purpose.
func ResetPurpose(ch Channel) Purpose {
	if ch == ChannelSMS {
		return PurposePasswordResetPhone
	}
	return PurposePasswordResetEmail
}

// Token is a single-use credential.
// PK: owner_id, SK: purpose. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Token struct {
	OwnerID   string    `json:"owner_id" dynamodbav:"owner_id"`
	Purpose   Purpose   `json:"purpose" dynamodbav:"purpose"`
	Value     string    `json:"-" dynamodbav:"value"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"`  // TTL (Unix seconds)
	ClaimedAt int64     `json:"-" dynamodbav:"claimed_at,omitempty"` // in-flight redemption marker
}

// NewToken builds a token for owner/purpose that expires ttl after now.
func NewToken(ownerID string, purpose Purpose, value string, now time.Time, ttl time.Duration) *Token {
	return &Token{
		OwnerID:   ownerID,
		Purpose:   purpose,
		Value:     value,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// Expiry returns ExpiresAt as a time.
func (t *Token) Expiry() time.Time {
	return time.Unix(t.ExpiresAt, 0).UTC()
}

// LiveAt reports whether the token is still redeemable at now.
func (t *Token) LiveAt(now time.Time) bool {
	return now.Unix() < t.ExpiresAt
}
