package firebase

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	firebasesdk "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/fleetops/api-gateway/models"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// EmulatorHostEnv is read by the Admin SDK. When it is set, ID tokens are
// checked against the Auth emulator and signatures are not verified.
const EmulatorHostEnv = "FIREBASE_AUTH_EMULATOR_HOST"

var (
	// ErrInvalidToken is returned when the token is malformed, badly signed or
	// carries the wrong issuer, audience or issue time
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked is returned when the user's sessions were revoked after the token was issued
	ErrTokenRevoked = errors.New("token revoked")

	// ErrUserDisabled is returned when the account behind the token is disabled
	ErrUserDisabled = errors.New("user disabled")

	// ErrInvalidSubject is returned when the uid is empty or too long
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrProviderUnavailable is returned when signing keys or account state cannot be fetched
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// ErrMissingCredentials is returned at startup when no service account is configured
	ErrMissingCredentials = errors.New("firebase credentials not fully configured")
)

// Config holds the Admin SDK settings
type Config struct {
	ProjectID       string
	ClientEmail     string
	PrivateKey      string // PEM encoded, real newlines
	CredentialsFile string
	CheckRevoked    bool
}

// idTokenVerifier is the part of *auth.Client the Verifier uses
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
}

// Verifier verifies Firebase ID tokens through the Admin SDK.
// It is safe for concurrent use.
type Verifier struct {
	client       idTokenVerifier
	checkRevoked bool
	logger       *zap.Logger
}

// NewVerifier initializes the Admin SDK. Credentials are required unless
// EmulatorHostEnv is set.
func NewVerifier(ctx context.Context, config Config, logger *zap.Logger) (*Verifier, error) {
	if config.ProjectID == "" {
		return nil, errors.New("firebase project ID is required")
	}

	opts, err := clientOptions(config)
	if err != nil {
		return nil, err
	}

	app, err := firebasesdk.NewApp(ctx, &firebasesdk.Config{ProjectID: config.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}

	logger.Info("firebase admin SDK initialized",
		zap.String("project_id", config.ProjectID),
		zap.Bool("emulator", os.Getenv(EmulatorHostEnv) != ""),
		zap.Bool("check_revoked", config.CheckRevoked))

	return &Verifier{
		client:       client,
		checkRevoked: config.CheckRevoked,
		logger:       logger,
	}, nil
}

// Verify validates a Firebase ID token and returns the decoded identity.
// Errors wrap one of the package sentinels, or the context error when ctx
// ended first. Callers must not echo them to clients.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*models.DecodedIdentity, error) {
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		token *auth.Token
		err   error
	)
	if v.checkRevoked {
		token, err = v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	} else {
		token, err = v.client.VerifyIDToken(ctx, idToken)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyError(err)
	}

	return toDecodedIdentity(token)
}

func classifyError(err error) error {
	switch {
	case auth.IsIDTokenExpired(err):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case auth.IsIDTokenRevoked(err):
		return fmt.Errorf("%w: %v", ErrTokenRevoked, err)
	case auth.IsUserDisabled(err):
		return fmt.Errorf("%w: %v", ErrUserDisabled, err)
	case auth.IsCertificateFetchFailed(err):
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	case auth.IsIDTokenInvalid(err), auth.IsUserNotFound(err):
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
}

// clientOptions picks the credential source: inline service account fields
// first, then a credentials file, then none when the emulator is configured.
func clientOptions(config Config) ([]option.ClientOption, error) {
	switch {
	case config.ClientEmail != "" && config.PrivateKey != "":
		creds, err := serviceAccountJSON(config)
		if err != nil {
			return nil, err
		}
		return []option.ClientOption{option.WithCredentialsJSON(creds)}, nil
	case config.CredentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(config.CredentialsFile)}, nil
	case os.Getenv(EmulatorHostEnv) != "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: required: FIREBASE_PRIVATE_KEY, FIREBASE_CLIENT_EMAIL, FIREBASE_PROJECT_ID",
			ErrMissingCredentials)
	}
}

type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// serviceAccountJSON builds a service account key file from the inline
// settings. The key is parsed here so a bad secret fails at startup rather
// than on the first token refresh.
func serviceAccountJSON(config Config) ([]byte, error) {
	block, _ := pem.Decode([]byte(config.PrivateKey))
	if block == nil {
		return nil, errors.New("firebase private key is not PEM encoded")
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err != nil {
		if _, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes); pkcs1Err != nil {
			return nil, fmt.Errorf("invalid firebase private key: %w", err)
		}
	}

	return json.Marshal(serviceAccount{
		Type:        "service_account",
		ProjectID:   config.ProjectID,
		ClientEmail: config.ClientEmail,
		PrivateKey:  config.PrivateKey,
		TokenURI:    "https://oauth2.googleapis.com/token",
	})
}
