package dynamo

// DynamoDB attribute names used in key and update expressions.
const (
	fieldUserID                = "user_id"
	fieldName                  = "name"
	fieldEmail                 = "email"
	fieldPhoneNumber           = "phone_number"
	fieldPasswordHash          = "password_hash"
	fieldAvatar                = "avatar"
	fieldIsVerifiedEmail       = "is_verified_email"
	fieldIsVerifiedPhoneNumber = "is_verified_phone_number"
	fieldUpdatedAt             = "updated_at"

	fieldOwnerID   = "owner_id"
	fieldPurpose   = "purpose"
	fieldValue     = "value"
	fieldExpiresAt = "expires_at"
	fieldClaimedAt = "claimed_at"

	indexEmail = "email-index"
	indexPhone = "phone_number-index"
	indexValue = "value-index"
)
