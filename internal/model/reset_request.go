package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ResetRequest represents an outstanding password reset request. At most one
// live request exists per account; the token is a single-use bearer secret.
type ResetRequest struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	AccountID     bson.ObjectID `bson:"account_id"`
	Token         string        `bson:"token"`
	RequestedAt   time.Time     `bson:"requested_at"`
	ReRequestedAt *time.Time    `bson:"rerequested_at"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
}

// Expired reports whether the request is past the reset window and its token
// can no longer be redeemed.
func (r *ResetRequest) Expired(now time.Time, window time.Duration) bool {
	return !now.Before(r.RequestedAt.Add(window))
}

// Ancient reports whether the request is past the reset window plus the grace
// window. Ancient requests are indistinguishable from requests that never
// existed.
func (r *ResetRequest) Ancient(now time.Time, window, grace time.Duration) bool {
	return !now.Before(r.RequestedAt.Add(window + grace))
}
