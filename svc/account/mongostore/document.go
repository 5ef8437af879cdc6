package mongostore

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/codeai/svc/account"
)

// ErrForeignID is returned for documents whose _id is not a UUID string,
// such as ObjectId-keyed users from a collection this store did not create.
// Such collections need their ids migrated before the store can serve them.
var ErrForeignID = errors.New("mongostore: document _id is not a UUID")

// document is the stored shape of an account. Field names follow the users
// schema of the web app; _id is the account UUID in string form.
type document struct {
	ID                   string           `bson:"_id"`
	Email                string           `bson:"email"`
	Name                 string           `bson:"name"`
	Password             string           `bson:"password,omitempty"`
	Google               bool             `bson:"google"`
	Avatar               string           `bson:"avatar,omitempty"`
	ReviewHistory        []reviewDocument `bson:"reviewHistory"`
	ResetPasswordToken   string           `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time       `bson:"resetPasswordExpires,omitempty"`
	CreatedAt            time.Time        `bson:"createdAt"`
	UpdatedAt            time.Time        `bson:"updatedAt"`
}

type reviewDocument struct {
	Code        string         `bson:"code"`
	Language    string         `bson:"language"`
	Description string         `bson:"description,omitempty"`
	Result      map[string]any `bson:"result,omitempty"`
	Status      string         `bson:"status"`
	CreatedAt   time.Time      `bson:"createdAt"`
}

func toDocument(a *account.Account) document {
	d := document{
		ID:                 a.ID.String(),
		Email:              a.Email,
		Name:               a.Name,
		Password:           string(a.PasswordHash),
		Google:             a.Google,
		Avatar:             a.Avatar,
		ReviewHistory:      make([]reviewDocument, 0, len(a.ReviewHistory)),
		ResetPasswordToken: a.ResetTokenHash,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if !a.ResetTokenExpiresAt.IsZero() {
		exp := a.ResetTokenExpiresAt
		d.ResetPasswordExpires = &exp
	}
	for _, r := range a.ReviewHistory {
		d.ReviewHistory = append(d.ReviewHistory, reviewDocument(r))
	}
	return d
}

func (d document) toAccount() (*account.Account, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrForeignID, d.ID)
	}

	a := &account.Account{
		ID:             id,
		Email:          d.Email,
		Name:           d.Name,
		Google:         d.Google,
		Avatar:         d.Avatar,
		ResetTokenHash: d.ResetPasswordToken,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.Password != "" {
		a.PasswordHash = []byte(d.Password)
	}
	if d.ResetPasswordExpires != nil {
		a.ResetTokenExpiresAt = *d.ResetPasswordExpires
	}
	if len(d.ReviewHistory) > 0 {
		a.ReviewHistory = make([]account.ReviewEntry, 0, len(d.ReviewHistory))
		for _, r := range d.ReviewHistory {
			a.ReviewHistory = append(a.ReviewHistory, account.ReviewEntry(r))
		}
	}
	return a, nil
}
