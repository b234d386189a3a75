package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
	"github.com/aussiebroadwan/edoras/internal/identity/validation"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Fields
}

func TestNewRegistersWebURL(t *testing.T) {
	var v *validation.Validator
	require.NotPanics(t, func() { v = validation.New() })

	_, err := v.ProfileUpdate(validation.Input{"avatar_url": "javascript:alert(1)"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Fields, "avatar_url")
}

func TestRegistration(t *testing.T) {
	v := validation.New()

	t.Run("valid input is normalized", func(t *testing.T) {
		got, err := v.Registration(validation.Input{
			"email":      "  Alice@Example.COM ",
			"username":   " alice ",
			"password":   "password123",
			"first_name": "Alice",
			"last_name":  nil,
			"is_admin":   true, // unknown fields are ignored
		})
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", got.Email)
		require.Equal(t, "alice", got.Username)
		require.Equal(t, "password123", got.Password)
		require.Equal(t, "Alice", *got.FirstName)
		require.Nil(t, got.LastName)
	})

	t.Run("missing everything", func(t *testing.T) {
		_, err := v.Registration(validation.Input{})
		require.Equal(t, map[string]string{
			"email":    "is required",
			"username": "is required",
			"password": "is required",
		}, fieldErrors(t, err))
	})

	t.Run("rules are reported per field", func(t *testing.T) {
		_, err := v.Registration(validation.Input{
			"email":      "not-an-email",
			"username":   "al",
			"password":   "short",
			"first_name": strings.Repeat("a", 51),
		})
		require.Equal(t, map[string]string{
			"email":      "must be a valid email",
			"username":   "must be at least 3 characters",
			"password":   "must be at least 8 characters",
			"first_name": "must be at most 50 characters",
		}, fieldErrors(t, err))
	})

	t.Run("upper bounds", func(t *testing.T) {
		_, err := v.Registration(validation.Input{
			"email":    strings.Repeat("a", 115) + "@x.com",
			"username": strings.Repeat("u", 81),
			"password": strings.Repeat("p", 129),
		})
		require.Equal(t, map[string]string{
			"email":    "must be at most 120 characters",
			"username": "must be at most 80 characters",
			"password": "must be at most 128 characters",
		}, fieldErrors(t, err))
	})

	t.Run("type errors win over rules", func(t *testing.T) {
		_, err := v.Registration(validation.Input{
			"email":    42,
			"username": []any{"alice"},
			"password": "password123",
		})
		require.Equal(t, map[string]string{
			"email":    "must be a string",
			"username": "must be a string",
		}, fieldErrors(t, err))
	})

	t.Run("boundary lengths pass", func(t *testing.T) {
		_, err := v.Registration(validation.Input{
			"email":    "bob@example.com",
			"username": "bob",
			"password": strings.Repeat("p", 8),
		})
		require.NoError(t, err)

		_, err = v.Registration(validation.Input{
			"email":    "bob@example.com",
			"username": strings.Repeat("b", 80),
			"password": strings.Repeat("p", 128),
		})
		require.NoError(t, err)
	})
}

func TestLogin(t *testing.T) {
	v := validation.New()

	got, err := v.Login(validation.Input{"email": "Alice@Example.com", "password": "x"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", got.Email)
	require.Equal(t, "x", got.Password, "no length rule on login")

	_, err = v.Login(validation.Input{"email": ""})
	require.Equal(t, map[string]string{
		"email":    "is required",
		"password": "is required",
	}, fieldErrors(t, err))
}

func TestPasswordChange(t *testing.T) {
	v := validation.New()

	got, err := v.PasswordChange(validation.Input{"current_password": "old", "new_password": "newpassword"})
	require.NoError(t, err)
	require.Equal(t, "old", got.CurrentPassword)
	require.Equal(t, "newpassword", got.NewPassword)

	_, err = v.PasswordChange(validation.Input{"new_password": "short"})
	require.Equal(t, map[string]string{
		"current_password": "is required",
		"new_password":     "must be at least 8 characters",
	}, fieldErrors(t, err))
}

func TestProfileUpdate(t *testing.T) {
	v := validation.New()

	t.Run("only present keys", func(t *testing.T) {
		got, err := v.ProfileUpdate(validation.Input{"first_name": "Alicia", "email": "ignored@example.com"})
		require.NoError(t, err)
		require.NotNil(t, got.FirstName)
		require.Equal(t, "Alicia", *got.FirstName.Value)
		require.Nil(t, got.LastName)
		require.Nil(t, got.AvatarURL)
	})

	t.Run("null and empty clear", func(t *testing.T) {
		got, err := v.ProfileUpdate(validation.Input{"last_name": nil, "avatar_url": ""})
		require.NoError(t, err)
		require.Nil(t, got.FirstName)
		require.NotNil(t, got.LastName)
		require.Nil(t, got.LastName.Value)
		require.NotNil(t, got.AvatarURL)
		require.Nil(t, got.AvatarURL.Value)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		got, err := v.ProfileUpdate(validation.Input{})
		require.NoError(t, err)
		require.True(t, got.Empty())
	})

	t.Run("avatar must be a web url", func(t *testing.T) {
		for _, ok := range []string{"https://cdn.example.com/a.png", "http://x.io"} {
			_, err := v.ProfileUpdate(validation.Input{"avatar_url": ok})
			require.NoError(t, err, ok)
		}
		for _, bad := range []string{"not a url", "/relative/path.png", "javascript:alert(1)", "https://"} {
			_, err := v.ProfileUpdate(validation.Input{"avatar_url": bad})
			require.Equal(t, map[string]string{"avatar_url": "must be a valid URL"}, fieldErrors(t, err), bad)
		}
	})

	t.Run("nothing applied on failure", func(t *testing.T) {
		got, err := v.ProfileUpdate(validation.Input{"first_name": "ok", "last_name": strings.Repeat("x", 51)})
		require.Error(t, err)
		require.True(t, got.Empty())
	})
}
