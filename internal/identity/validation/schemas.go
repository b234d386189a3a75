package validation

import (
	"strings"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
)

// Registration is a validated sign-up request.
type Registration struct {
	Email     string  `json:"email" validate:"required,max=120,email"`
	Username  string  `json:"username" validate:"required,min=3,max=80"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	FirstName *string `json:"first_name" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,max=50"`
}

// Login is a validated credential pair.
type Login struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// PasswordChange is a validated password rotation request.
type PasswordChange struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type profileUpdate struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,max=50"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,max=255,weburl"`
}

// Registration validates a sign-up. Email is normalized and the username
// trimmed before the rules run.
func (v *Validator) Registration(in Input) (Registration, error) {
	r := newReader(in)
	out := Registration{
		Email:    NormalizeEmail(r.str("email")),
		Username: strings.TrimSpace(r.str("username")),
		Password: r.str("password"),
	}
	out.FirstName, _ = r.optional("first_name")
	out.LastName, _ = r.optional("last_name")

	if err := v.check(out, r.fields); err != nil {
		return Registration{}, err
	}
	return out, nil
}

// Login validates a login attempt. Only presence is checked.
func (v *Validator) Login(in Input) (Login, error) {
	r := newReader(in)
	out := Login{
		Email:    NormalizeEmail(r.str("email")),
		Password: r.str("password"),
	}

	if err := v.check(out, r.fields); err != nil {
		return Login{}, err
	}
	return out, nil
}

// PasswordChange validates a password rotation.
func (v *Validator) PasswordChange(in Input) (PasswordChange, error) {
	r := newReader(in)
	out := PasswordChange{
		CurrentPassword: r.str("current_password"),
		NewPassword:     r.str("new_password"),
	}

	if err := v.check(out, r.fields); err != nil {
		return PasswordChange{}, err
	}
	return out, nil
}

// ProfileUpdate validates a partial profile update. Only keys present in in
// show up in the result; null or "" clears a field.
func (v *Validator) ProfileUpdate(in Input) (domain.ProfileChanges, error) {
	r := newReader(in)

	var (
		payload profileUpdate
		changes domain.ProfileChanges
	)
	for _, f := range []struct {
		key    string
		value  **string
		change **domain.Optional
	}{
		{"first_name", &payload.FirstName, &changes.FirstName},
		{"last_name", &payload.LastName, &changes.LastName},
		{"avatar_url", &payload.AvatarURL, &changes.AvatarURL},
	} {
		s, present := r.optional(f.key)
		if !present {
			continue
		}
		*f.value = s
		*f.change = &domain.Optional{Value: s}
	}

	if err := v.check(payload, r.fields); err != nil {
		return domain.ProfileChanges{}, err
	}
	return changes, nil
}
