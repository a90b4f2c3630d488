package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/bambuco/moodle-auth-customized/internal/model"
)

// AccountRepository defines the account store consumed by the recovery core.
// Identifier uniqueness is guaranteed by this store, not by the callers.
type AccountRepository interface {
	// CreateAccount creates a new, typically unconfirmed, account.
	CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error)

	// GetAccount retrieves an account by its ID.
	GetAccount(ctx context.Context, id bson.ObjectID) (*model.Account, error)

	// GetByUsername retrieves a non-deleted, non-suspended account on the
	// local realm by its lowercased username.
	GetByUsername(ctx context.Context, username string) (*model.Account, error)

	// GetByEmail retrieves a non-deleted, non-suspended account on the local
	// realm by email, matched case-insensitively but accent-sensitively.
	// Emails are not guaranteed unique; when several accounts match, a single
	// one is picked deterministically (lowest ID).
	GetByEmail(ctx context.Context, email string) (*model.Account, error)

	// UpdatePassword replaces the stored credential hash.
	UpdatePassword(ctx context.Context, id bson.ObjectID, passwordHash string) error

	// ClearLockout resets the login lockout counter.
	ClearLockout(ctx context.Context, id bson.ObjectID) error

	// ClearForcePasswordChange removes any requirement to change the password
	// at next login.
	ClearForcePasswordChange(ctx context.Context, id bson.ObjectID) error

	// SetConfirmed marks the account as confirmed and clears its
	// confirmation secret.
	SetConfirmed(ctx context.Context, id bson.ObjectID) error
}

const accountCollection = "accounts"

// caseInsensitive compares letters case-insensitively while keeping
// diacritics significant (ICU collation strength 2).
var caseInsensitive = options.Collation{Locale: "en", Strength: 2}

type accountMongoRepository struct {
	db *mongo.Database
}

// NewAccountMongoRepository creates a new MongoDB repository for accounts.
func NewAccountMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) AccountRepository {
	collection := db.Collection(accountCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Email is intentionally not unique: existing data may carry
			// duplicates, which GetByEmail tolerates.
			Keys: bson.D{{Key: "email", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create account indexes")
	}

	return &accountMongoRepository{db: db}
}

func (r *accountMongoRepository) CreateAccount(
	ctx context.Context,
	account *model.Account,
) (*model.Account, error) {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	result, err := r.db.Collection(accountCollection).InsertOne(ctx, account)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		account.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return account, nil
}

func (r *accountMongoRepository) GetAccount(ctx context.Context, id bson.ObjectID) (*model.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *accountMongoRepository) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	filter := bson.M{
		"username":  strings.ToLower(username),
		"realm":     model.RealmLocal,
		"deleted":   false,
		"suspended": false,
	}

	return r.findOne(ctx, filter, nil)
}

func (r *accountMongoRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	filter := bson.M{
		"email":     email,
		"realm":     model.RealmLocal,
		"deleted":   false,
		"suspended": false,
	}

	// Several accounts may share an email. Sorting on _id makes the pick
	// deterministic rather than load-order dependent.
	opts := options.FindOne().
		SetCollation(&caseInsensitive).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	return r.findOne(ctx, filter, opts)
}

func (r *accountMongoRepository) findOne(
	ctx context.Context,
	filter bson.M,
	opts options.Lister[options.FindOneOptions],
) (*model.Account, error) {
	var result *mongo.SingleResult
	if opts != nil {
		result = r.db.Collection(accountCollection).FindOne(ctx, filter, opts)
	} else {
		result = r.db.Collection(accountCollection).FindOne(ctx, filter)
	}

	var account model.Account
	if err := result.Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &account, nil
}

func (r *accountMongoRepository) UpdatePassword(ctx context.Context, id bson.ObjectID, passwordHash string) error {
	return r.updateFields(ctx, id, bson.M{"password_hash": passwordHash})
}

func (r *accountMongoRepository) ClearLockout(ctx context.Context, id bson.ObjectID) error {
	return r.updateFields(ctx, id, bson.M{"lockout_count": 0})
}

func (r *accountMongoRepository) ClearForcePasswordChange(ctx context.Context, id bson.ObjectID) error {
	return r.updateFields(ctx, id, bson.M{"force_password_change": false})
}

func (r *accountMongoRepository) SetConfirmed(ctx context.Context, id bson.ObjectID) error {
	return r.updateFields(ctx, id, bson.M{"confirmed": true, "confirm_secret": ""})
}

func (r *accountMongoRepository) updateFields(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()

	result, err := r.db.Collection(accountCollection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": fields},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}
