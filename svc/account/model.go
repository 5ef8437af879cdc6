package account

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultAvatarPath is served when an account has no avatar.
const DefaultAvatarPath = "uploads/avatars/default-avatar.png"

// Account is the persisted identity record.
type Account struct {
	ID            uuid.UUID
	Email         string
	Name          string
	PasswordHash  []byte // empty for Google accounts that never set a password
	Google        bool
	Avatar        string // relative path or absolute URL
	ReviewHistory []ReviewEntry

	ResetTokenHash      string
	ResetTokenExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether password login is possible.
func (a *Account) HasPassword() bool {
	return len(a.PasswordHash) > 0
}

// ReviewEntry is one item of the code review log. The account service only
// stores it and deletes it with the account.
type ReviewEntry struct {
	Code        string
	Language    string
	Description string
	Result      map[string]any
	Status      string
	CreatedAt   time.Time
}

// Profile is the public view of an account.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
	Google    bool      `json:"google"`
}

// AuthResult is returned by every operation that opens a session.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   Profile
}

// ResetTicket describes an issued password reset. Token is the only copy of
// the plaintext; it must go to the account owner and nowhere else.
type ResetTicket struct {
	AccountID uuid.UUID
	Email     string
	Token     string
	ResetURL  string
	ExpiresAt time.Time
}

// SignupInput holds the fields of a password signup.
type SignupInput struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateProfileInput changes only the non-nil fields.
type UpdateProfileInput struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

// ProfileUpdate is the storage form of UpdateProfileInput.
type ProfileUpdate struct {
	Name      *string
	Avatar    *string
	UpdatedAt time.Time
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type changePasswordInput struct {
	Current string `json:"current" validate:"required"`
	New     string `json:"newPass" validate:"required,min=8,max=72"`
}

type forgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordInput struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// normalizeEmail trims surrounding whitespace. Email keys are case-sensitive.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Avatar references are either http(s) URLs or files under AvatarDir.
const (
	AvatarDir       = "uploads/avatars/"
	maxAvatarLength = 2048
)

// validAvatar reports whether ref may be stored and served as an avatar. An
// empty ref selects the default avatar.
func validAvatar(ref string) bool {
	if ref == "" {
		return true
	}
	if len(ref) > maxAvatarLength || strings.Contains(ref, `\`) {
		return false
	}

	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	if u.IsAbs() {
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" && u.User == nil
	}
	if u.Host != "" || u.RawQuery != "" || u.Fragment != "" {
		return false
	}

	rel := strings.TrimPrefix(ref, "/")
	return path.Clean(rel) == rel && strings.HasPrefix(rel, AvatarDir) && len(rel) > len(AvatarDir)
}

// avatarURL resolves the stored avatar reference against backendURL. Empty
// and invalid references resolve to the default avatar.
func avatarURL(backendURL, avatar string) string {
	base := strings.TrimRight(backendURL, "/")
	if avatar == "" || !validAvatar(avatar) {
		return base + "/" + DefaultAvatarPath
	}
	if u, err := url.Parse(avatar); err == nil && u.IsAbs() {
		return avatar
	}
	return base + "/" + strings.TrimPrefix(avatar, "/")
}

func toProfile(a *Account, backendURL string) Profile {
	return Profile{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		AvatarURL: avatarURL(backendURL, a.Avatar),
		Google:    a.Google,
	}
}
