package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/bambuco/moodle-auth-customized/internal/model"
)

// PasswordHistoryRepository records credential hashes so a password policy
// collaborator can refuse recently used passwords.
type PasswordHistoryRepository interface {
	Add(ctx context.Context, accountID bson.ObjectID, hash string) error
	ListForAccount(ctx context.Context, accountID bson.ObjectID) ([]model.PasswordHistory, error)
}

const passwordHistoryCollection = "password_history"

type passwordHistoryMongoRepository struct {
	db *mongo.Database
}

// NewPasswordHistoryMongoRepository creates a new MongoDB repository for
// password history entries.
func NewPasswordHistoryMongoRepository(db *mongo.Database) PasswordHistoryRepository {
	return &passwordHistoryMongoRepository{db: db}
}

func (r *passwordHistoryMongoRepository) Add(ctx context.Context, accountID bson.ObjectID, hash string) error {
	entry := model.PasswordHistory{
		AccountID: accountID,
		Hash:      hash,
		CreatedAt: time.Now(),
	}

	_, err := r.db.Collection(passwordHistoryCollection).InsertOne(ctx, entry)
	return err
}

func (r *passwordHistoryMongoRepository) ListForAccount(
	ctx context.Context,
	accountID bson.ObjectID,
) ([]model.PasswordHistory, error) {
	cursor, err := r.db.Collection(passwordHistoryCollection).Find(ctx, bson.M{"account_id": accountID})
	if err != nil {
		return nil, err
	}

	var entries []model.PasswordHistory
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}
