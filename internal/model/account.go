package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Realm values. Only accounts on the local realm may use self-service
// password recovery; accounts mirrored from remote hosts are excluded.
const (
	RealmLocal = "local"
)

// Auth method tags understood by the service.
const (
	AuthManual  = "manual"
	AuthNoLogin = "nologin"
	AuthGuest   = "guest"
)

// Account represents a user account in the authentication system.
// Account storage is external to the password-recovery core: the core reads
// accounts and delegates credential writes, but never creates or deletes them
// outside of the signup flow.
type Account struct {
	ID                  bson.ObjectID `bson:"_id,omitempty"`
	Username            string        `bson:"username"`
	Email               string        `bson:"email"`
	FirstName           string        `bson:"first_name"`
	LastName            string        `bson:"last_name"`
	City                string        `bson:"city"`
	Country             string        `bson:"country"`
	Lang                string        `bson:"lang"`
	AuthMethod          string        `bson:"auth_method"`
	Realm               string        `bson:"realm"`
	PasswordHash        string        `bson:"password_hash"`
	Confirmed           bool          `bson:"confirmed"`
	Suspended           bool          `bson:"suspended"`
	Deleted             bool          `bson:"deleted"`
	LockoutCount        int           `bson:"lockout_count"`
	ForcePasswordChange bool          `bson:"force_password_change"`
	ConfirmSecret       string        `bson:"confirm_secret"`
	CreatedAt           time.Time     `bson:"created_at"`
	UpdatedAt           time.Time     `bson:"updated_at"`
}

// IsGuest reports whether the account is a guest/anonymous account, which is
// never allowed to set its own password.
func (a *Account) IsGuest() bool {
	return a.AuthMethod == AuthGuest
}
