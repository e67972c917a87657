// Package session owns the authentication state machine for a single client
// session: Anonymous -> PendingSecondFactor -> Authenticated, and the bearer
// credential custody that goes with it.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"rfpchat/internal/api"
	"rfpchat/internal/logging"
)

// AuthState is the session's authentication phase.
type AuthState int

const (
	Anonymous AuthState = iota
	PendingSecondFactor
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case PendingSecondFactor:
		return "pending-2fa"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

var (
	// ErrEmptyCredentials is returned by Login when either field is blank.
	// The backend would reject these anyway; failing locally keeps the gate
	// semantics uniform.
	ErrEmptyCredentials = errors.New("username and password must not be empty")

	// ErrNoPendingSecondFactor is returned by VerifySecondFactor when no
	// login has reported a second-factor requirement.
	ErrNoPendingSecondFactor = errors.New("no second-factor verification is pending")
)

// AuthAPI is the slice of the backend the controller needs. *api.Client
// satisfies it.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*api.LoginResult, error)
	VerifySecondFactor(ctx context.Context, username, code string) (string, error)
}

// Controller owns the session credential and auth state. Invariant: the
// credential is non-empty if and only if the state is Authenticated. All
// mutation happens through Login and VerifySecondFactor; each performs
// exactly one network round trip and a failed attempt leaves the state
// machine where it was.
//
// A single mutex guards the state so the controller stays correct when its
// operations run off the UI goroutine (bubbletea commands do).
type Controller struct {
	backend AuthAPI

	mu         sync.Mutex
	state      AuthState
	credential string
	username   string // retained between login and 2FA verify
}

// NewController creates a Controller in the Anonymous state.
func NewController(backend AuthAPI) *Controller {
	return &Controller{backend: backend}
}

// State reports the current authentication phase.
func (c *Controller) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Credential returns the bearer token and whether one is held. ok is true
// exactly when the session is Authenticated.
func (c *Controller) Credential() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential, c.credential != ""
}

// Username returns the account name of the current login attempt, if any.
func (c *Controller) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Login starts a fresh session with the given credentials. Any previously
// held credential is discarded first: a new login attempt is the one
// destruction path for an existing session. On success the session is either
// Authenticated (token issued directly) or PendingSecondFactor. On failure,
// transport or rejection alike, the session is Anonymous and the error
// carries the reason.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrEmptyCredentials
	}

	// Reset before the round trip so a rejected re-login cannot keep the old
	// credential alive.
	c.mu.Lock()
	c.state = Anonymous
	c.credential = ""
	c.username = username
	c.mu.Unlock()

	res, err := c.backend.Login(ctx, username, password)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("login failed",
			zap.String("username", username), zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if res.Requires2FA {
		c.state = PendingSecondFactor
	} else {
		c.state = Authenticated
		c.credential = res.AccessToken
	}
	logging.Get(logging.CategorySession).Info("login accepted",
		zap.String("username", username), zap.Stringer("state", c.state))
	return nil
}

// VerifySecondFactor submits a one-time code for the pending login. On
// success the session becomes Authenticated and the credential is stored. On
// failure the session stays PendingSecondFactor; the user may retry with a
// new code indefinitely.
func (c *Controller) VerifySecondFactor(ctx context.Context, code string) error {
	c.mu.Lock()
	if c.state != PendingSecondFactor {
		c.mu.Unlock()
		return ErrNoPendingSecondFactor
	}
	username := c.username
	c.mu.Unlock()

	token, err := c.backend.VerifySecondFactor(ctx, username, code)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("second factor rejected",
			zap.String("username", username), zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Authenticated
	c.credential = token
	logging.Get(logging.CategorySession).Info("second factor accepted",
		zap.String("username", username))
	return nil
}
