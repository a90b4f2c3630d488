package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/bambuco/moodle-auth-customized/internal/model"
	"github.com/bambuco/moodle-auth-customized/internal/token"
)

// ResetRequestRepository owns the storage and mutation of password reset
// requests. No other component writes these records.
type ResetRequestRepository interface {
	// FindByAccount retrieves the outstanding reset request for an account.
	FindByAccount(ctx context.Context, accountID bson.ObjectID) (*model.ResetRequest, error)

	// FindByToken retrieves a reset request by its token, joined to the
	// owning account.
	FindByToken(ctx context.Context, tok string) (*model.Account, *model.ResetRequest, error)

	// Create issues a fresh reset request for the account with a new token
	// and RequestedAt set to now. It returns ErrConflict if a request already
	// exists for the account; the caller must delete the old record first.
	Create(ctx context.Context, account *model.Account) (*model.ResetRequest, error)

	// MarkResent records the single permitted re-request on a pending reset.
	// It returns ErrAlreadyResent if the request was already re-sent.
	MarkResent(ctx context.Context, req *model.ResetRequest) (*model.ResetRequest, error)

	// Delete removes a reset request. It reports whether this caller removed
	// the record, which makes the delete the serialization point for
	// single-use redemption: of two concurrent redeemers, only one sees true.
	Delete(ctx context.Context, req *model.ResetRequest) (bool, error)

	// DeleteExpired removes requests older than the given cutoff. Used by an
	// external periodic sweeper; expiry is otherwise enforced lazily at read
	// time.
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

const resetRequestCollection = "password_reset_requests"

type resetRequestMongoRepository struct {
	db       *mongo.Database
	accounts AccountRepository
	tokens   token.Generator
}

// NewResetRequestMongoRepository creates a new MongoDB repository for reset
// requests. The unique index on account_id makes Create atomic with respect
// to the one-live-request-per-account invariant.
func NewResetRequestMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
	accounts AccountRepository,
	tokens token.Generator,
) ResetRequestRepository {
	collection := db.Collection(resetRequestCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create reset request indexes")
	}

	return &resetRequestMongoRepository{
		db:       db,
		accounts: accounts,
		tokens:   tokens,
	}
}

func (r *resetRequestMongoRepository) FindByAccount(
	ctx context.Context,
	accountID bson.ObjectID,
) (*model.ResetRequest, error) {
	result := r.db.Collection(resetRequestCollection).FindOne(ctx, bson.M{"account_id": accountID})

	var req model.ResetRequest
	if err := result.Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &req, nil
}

func (r *resetRequestMongoRepository) FindByToken(
	ctx context.Context,
	tok string,
) (*model.Account, *model.ResetRequest, error) {
	result := r.db.Collection(resetRequestCollection).FindOne(ctx, bson.M{"token": tok})

	var req model.ResetRequest
	if err := result.Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	account, err := r.accounts.GetAccount(ctx, req.AccountID)
	if err != nil {
		// An orphaned request whose account has gone away is as good as no
		// request at all.
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	return account, &req, nil
}

func (r *resetRequestMongoRepository) Create(
	ctx context.Context,
	account *model.Account,
) (*model.ResetRequest, error) {
	tok, err := r.tokens.Generate()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	req := &model.ResetRequest{
		AccountID:     account.ID,
		Token:         tok,
		RequestedAt:   now,
		ReRequestedAt: nil,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result, err := r.db.Collection(resetRequestCollection).InsertOne(ctx, req)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		req.ID = objectID
	}

	return req, nil
}

func (r *resetRequestMongoRepository) MarkResent(
	ctx context.Context,
	req *model.ResetRequest,
) (*model.ResetRequest, error) {
	now := time.Now()
	result := r.db.Collection(resetRequestCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": req.ID, "rerequested_at": nil},
		bson.M{"$set": bson.M{"rerequested_at": now, "updated_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated model.ResetRequest
	if err := result.Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAlreadyResent
		}
		return nil, err
	}

	return &updated, nil
}

func (r *resetRequestMongoRepository) Delete(ctx context.Context, req *model.ResetRequest) (bool, error) {
	result, err := r.db.Collection(resetRequestCollection).DeleteOne(ctx, bson.M{"_id": req.ID})
	if err != nil {
		return false, err
	}

	return result.DeletedCount == 1, nil
}

func (r *resetRequestMongoRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	filter := bson.M{
		"requested_at": bson.M{"$lt": olderThan},
	}

	result, err := r.db.Collection(resetRequestCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}
