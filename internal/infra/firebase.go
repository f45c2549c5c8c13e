// README: Firebase ID-token verification for search callers. Absent project id means anonymous-only.
package infra

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ErrTokenRevoked is returned when revocation checks are on and the token
// was revoked or the account disabled.
var ErrTokenRevoked = errors.New("id token revoked")

// FirebaseToken is the verified caller identity. The uid keys the search quota.
type FirebaseToken struct {
	UID    string
	Claims map[string]interface{}
}

// Role returns the "role" custom claim, or "" when unset.
func (t *FirebaseToken) Role() string {
	if t == nil {
		return ""
	}
	role, _ := t.Claims["role"].(string)
	return role
}

// TokenVerifier verifies a raw ID token.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

type firebaseVerifier struct {
	client       *auth.Client
	checkRevoked bool
}

// FirebaseOptions configures NewFirebaseVerifier.
type FirebaseOptions struct {
	ProjectID string
	// CredentialsFile is a service-account JSON path; empty uses
	// application-default credentials.
	CredentialsFile string
	// CheckRevoked costs one extra Admin API call per verification.
	CheckRevoked bool
}

// NewFirebaseVerifier returns nil with no error when ProjectID is empty, so
// the API serves anonymous searches only.
func NewFirebaseVerifier(ctx context.Context, opts FirebaseOptions) (TokenVerifier, error) {
	if opts.ProjectID == "" {
		return nil, nil
	}
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client, checkRevoked: opts.CheckRevoked}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	var (
		token *auth.Token
		err   error
	)
	if v.checkRevoked {
		token, err = v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	} else {
		token, err = v.client.VerifyIDToken(ctx, idToken)
	}
	switch {
	case err == nil:
		return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
	case auth.IsIDTokenRevoked(err), auth.IsUserDisabled(err):
		return nil, ErrTokenRevoked
	default:
		return nil, fmt.Errorf("verify id token: %w", err)
	}
}
