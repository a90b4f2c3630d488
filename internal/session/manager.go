// Package session establishes and revokes authenticated sessions.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bambuco/moodle-auth-customized/internal/config"
	"github.com/bambuco/moodle-auth-customized/internal/model"
	"github.com/bambuco/moodle-auth-customized/internal/repository"
)

// Tokens are the credentials of an established session.
type Tokens struct {
	SessionID    bson.ObjectID
	AccessToken  string
	RefreshToken string
}

// Manager implements the session collaborator of the recovery core: it
// establishes a session after a successful password set and revokes the
// account's other sessions on password change.
type Manager interface {
	// Establish creates a new authenticated session for the account.
	Establish(ctx context.Context, account *model.Account) (*Tokens, error)

	// KillOtherSessions invalidates every session of the account except the
	// one to keep.
	KillOtherSessions(ctx context.Context, accountID, keep bson.ObjectID) error
}

type manager struct {
	sessions repository.SessionRepository
	jwtAuth  JWTAuthenticator
	cfg      *config.Config
}

// NewManager creates a session Manager.
func NewManager(sessions repository.SessionRepository, jwtAuth JWTAuthenticator, cfg *config.Config) Manager {
	return &manager{
		sessions: sessions,
		jwtAuth:  jwtAuth,
		cfg:      cfg,
	}
}

func (m *manager) Establish(ctx context.Context, account *model.Account) (*Tokens, error) {
	sess, err := m.sessions.CreateSession(ctx, &model.Session{AccountID: account.ID})
	if err != nil {
		return nil, err
	}

	accessToken, err := m.generateToken(
		account.ID.Hex(),
		sess.ID.Hex(),
		m.cfg.Token.AccessTokenSecret,
		m.cfg.Token.AccessTokenExpiresIn,
	)
	if err != nil {
		return nil, err
	}

	refreshToken, err := m.generateToken(
		account.ID.Hex(),
		sess.ID.Hex(),
		m.cfg.Token.RefreshTokenSecret,
		m.cfg.Token.RefreshTokenExpiresIn,
	)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := m.sessions.UpdateTokens(ctx, sess.ID, repository.UpdateTokensParams{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  now.Add(m.cfg.Token.AccessTokenExpiresIn),
		RefreshTokenExpiresAt: now.Add(m.cfg.Token.RefreshTokenExpiresIn),
	}); err != nil {
		return nil, err
	}

	return &Tokens{
		SessionID:    sess.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (m *manager) KillOtherSessions(ctx context.Context, accountID, keep bson.ObjectID) error {
	_, err := m.sessions.DeleteAllForAccountExcept(ctx, accountID, keep)
	return err
}

func (m *manager) generateToken(accountID, sessionID, secret string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.cfg.Token.Issuer,
			Audience:  jwt.ClaimStrings{m.cfg.Token.Issuer},
		},
	}

	return m.jwtAuth.GenerateToken(claims, secret)
}
