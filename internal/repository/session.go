package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/bambuco/moodle-auth-customized/internal/model"
)

// SessionRepository defines the session store used when establishing a login
// after a password set, and when revoking sessions on password change.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) (*model.Session, error)
	UpdateTokens(ctx context.Context, id bson.ObjectID, params UpdateTokensParams) (*model.Session, error)

	// DeleteAllForAccountExcept removes every session belonging to the
	// account other than the one to keep. Used for logout-on-password-change.
	DeleteAllForAccountExcept(ctx context.Context, accountID, keep bson.ObjectID) (int64, error)
}

// UpdateTokensParams defines the parameters for updating session tokens.
type UpdateTokensParams struct {
	AccessToken           string    `bson:"access_token"`
	RefreshToken          string    `bson:"refresh_token"`
	AccessTokenExpiresAt  time.Time `bson:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `bson:"refresh_token_expires_at"`
}

const sessionCollection = "sessions"

type sessionMongoRepository struct {
	db *mongo.Database
}

// NewSessionMongoRepository creates a new MongoDB repository for sessions.
func NewSessionMongoRepository(db *mongo.Database) SessionRepository {
	return &sessionMongoRepository{db: db}
}

func (r *sessionMongoRepository) CreateSession(ctx context.Context, session *model.Session) (*model.Session, error) {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	result, err := r.db.Collection(sessionCollection).InsertOne(ctx, session)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		session.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return session, nil
}

func (r *sessionMongoRepository) UpdateTokens(
	ctx context.Context,
	id bson.ObjectID,
	params UpdateTokensParams,
) (*model.Session, error) {
	result := r.db.Collection(sessionCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": params},
	)

	var session model.Session
	if err := result.Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &session, nil
}

func (r *sessionMongoRepository) DeleteAllForAccountExcept(
	ctx context.Context,
	accountID, keep bson.ObjectID,
) (int64, error) {
	filter := bson.M{
		"account_id": accountID,
		"_id":        bson.M{"$ne": keep},
	}

	result, err := r.db.Collection(sessionCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}
