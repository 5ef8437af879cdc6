// Package mongostore implements account.Storage on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/codeai/svc/account"
)

// DefaultCollection holds the account documents.
const DefaultCollection = "users"

// Store persists accounts in one collection. Per-account updates are single
// document operations, so MongoDB serializes them.
type Store struct {
	coll *mongo.Collection
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	collection string
}

// WithCollection overrides DefaultCollection.
func WithCollection(name string) Option {
	return func(o *storeOptions) {
		if name != "" {
			o.collection = name
		}
	}
}

// New returns a Store on db. Call EnsureIndexes once at startup.
func New(db *mongo.Database, opts ...Option) *Store {
	o := storeOptions{collection: DefaultCollection}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{coll: db.Collection(o.collection)}
}

// EnsureIndexes creates the unique email index and the sparse reset token index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "resetPasswordToken", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("reset_token"),
		},
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, acc *account.Account) error {
	if _, err := s.coll.InsertOne(ctx, toDocument(acc)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return account.ErrEmailAlreadyExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, upd account.ProfileUpdate) (*account.Account, error) {
	return s.findOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		profileUpdate(upd),
		account.ErrAccountNotFound,
	)
}

func (s *Store) UpdatePasswordCAS(ctx context.Context, id uuid.UUID, oldHash, newHash []byte, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: id.String()},
			{Key: "password", Value: string(oldHash)},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "password", Value: string(newHash)},
			{Key: "updatedAt", Value: at},
		}}},
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return account.ErrPasswordChanged
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func (s *Store) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "resetPasswordToken", Value: tokenHash},
			{Key: "resetPasswordExpires", Value: expiresAt},
		}}},
	)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash []byte) (*account.Account, error) {
	return s.findOneAndUpdate(ctx,
		consumeFilter(tokenHash, now),
		consumeUpdate(newPasswordHash, now),
		account.ErrInvalidResetToken,
	)
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*account.Account, error) {
	var doc document
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toAccount()
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.D, notFound error) (*account.Account, error) {
	var doc document
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, fmt.Errorf("update account: %w", err)
	}
	return doc.toAccount()
}

func profileUpdate(upd account.ProfileUpdate) bson.D {
	set := bson.D{{Key: "updatedAt", Value: upd.UpdatedAt}}
	if upd.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *upd.Name})
	}
	if upd.Avatar != nil {
		set = append(set, bson.E{Key: "avatar", Value: *upd.Avatar})
	}
	return bson.D{{Key: "$set", Value: set}}
}

// consumeFilter matches only an unexpired token, so an expired or already
// cleared token never matches.
func consumeFilter(tokenHash string, now time.Time) bson.D {
	return bson.D{
		{Key: "resetPasswordToken", Value: tokenHash},
		{Key: "resetPasswordExpires", Value: bson.D{{Key: "$gt", Value: now}}},
	}
}

// consumeUpdate sets the password and drops the token in the same write.
func consumeUpdate(newPasswordHash []byte, now time.Time) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password", Value: string(newPasswordHash)},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "resetPasswordToken", Value: ""},
			{Key: "resetPasswordExpires", Value: ""},
		}},
	}
}

var _ account.Storage = (*Store)(nil)
