package domain

import "time"

// User is the persisted identity record. PasswordHash never leaves the
// service layer; use Profile for anything that is serialized.
type User struct {
	ID            string
	Email         string // trimmed, lower-cased
	Username      string
	PasswordHash  string // argon2id PHC, bcrypt for legacy rows
	FirstName     *string
	LastName      *string
	AvatarURL     *string
	IsActive      bool
	IsAdmin       bool
	EmailVerified bool
	LastLogin     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullName is "first last" when both names are set, otherwise the username.
func (u User) FullName() string {
	if u.FirstName != nil && *u.FirstName != "" && u.LastName != nil && *u.LastName != "" {
		return *u.FirstName + " " + *u.LastName
	}
	return u.Username
}

// Profile is the outward view of a User.
type Profile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	FirstName     *string    `json:"first_name"`
	LastName      *string    `json:"last_name"`
	FullName      string     `json:"full_name"`
	AvatarURL     *string    `json:"avatar_url"`
	IsActive      bool       `json:"is_active"`
	IsAdmin       *bool      `json:"is_admin,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	LastLogin     *time.Time `json:"last_login"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OwnerProfile is the view the account owner gets of their own record. It
// includes the admin flag.
func OwnerProfile(u User) Profile {
	p := ListProfile(u)
	admin := u.IsAdmin
	p.IsAdmin = &admin
	return p
}

// ListProfile is the view used when listing accounts. Role flags omitted.
func ListProfile(u User) Profile {
	return Profile{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		FullName:      u.FullName(),
		AvatarURL:     u.AvatarURL,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// ProfileChanges carries the fields of a partial profile update. A nil
// pointer field is absent from the update; a present field holding nil
// clears the stored value.
type ProfileChanges struct {
	FirstName *Optional
	LastName  *Optional
	AvatarURL *Optional
}

// Optional is a present-but-maybe-null string.
type Optional struct {
	Value *string
}

// Set returns a present Optional carrying s, or clearing the value when s
// is empty.
func Set(s string) *Optional {
	if s == "" {
		return &Optional{}
	}
	return &Optional{Value: &s}
}

// Clear returns a present Optional that clears the field.
func Clear() *Optional { return &Optional{} }

// Empty reports whether no field is present.
func (c ProfileChanges) Empty() bool {
	return c.FirstName == nil && c.LastName == nil && c.AvatarURL == nil
}

// Apply writes the present fields onto u.
func (c ProfileChanges) Apply(u *User) {
	if c.FirstName != nil {
		u.FirstName = c.FirstName.Value
	}
	if c.LastName != nil {
		u.LastName = c.LastName.Value
	}
	if c.AvatarURL != nil {
		u.AvatarURL = c.AvatarURL.Value
	}
}
