package domain

type SignupRequest struct {
	Name        string  `json:"name" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8,max=72"`
	PhoneNumber string  `json:"phone_number" validate:"required,e164"`
	Avatar      *string `json:"avatar"` // base64-encoded image or data URI
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// OTPRequest identifies an account by exactly one of email or phone number.
type OTPRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
}

// ResetPasswordRequest redeems a recovery code for the account named by
// exactly one of email or phone number.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
	OTP         string `json:"otp" validate:"required,numeric,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// ChangePasswordRequest carries either the current password or an OTP.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	OTP             string `json:"otp" validate:"omitempty,numeric,len=6"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type UpdateNameRequest struct {
	Name string `json:"name" validate:"required"`
}

type UpdateEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type UpdatePhoneNumberRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

type UpdateAvatarRequest struct {
	Avatar string `json:"avatar" validate:"required"`
}
