package firebase

import (
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/fleetops/api-gateway/models"
)

// maxSubjectLength is the upper bound Firebase places on a uid
const maxSubjectLength = 128

// toDecodedIdentity converts an SDK-verified token to the normalized record.
// Email and the admin custom claim come from the free-form claims map.
func toDecodedIdentity(token *auth.Token) (*models.DecodedIdentity, error) {
	uid := token.UID
	if uid == "" {
		uid = token.Subject
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: empty uid", ErrInvalidSubject)
	}
	if len(uid) > maxSubjectLength {
		return nil, fmt.Errorf("%w: uid longer than %d characters", ErrInvalidSubject, maxSubjectLength)
	}

	identity := &models.DecodedIdentity{
		Subject:   uid,
		IssuedAt:  unixTime(token.IssuedAt),
		ExpiresAt: unixTime(token.Expires),
		AuthTime:  unixTime(token.AuthTime),
	}
	identity.Email, _ = token.Claims["email"].(string)
	identity.EmailVerified, _ = token.Claims["email_verified"].(bool)
	identity.IsAdmin, _ = token.Claims["admin"].(bool)

	return identity, nil
}

func unixTime(seconds int64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0)
}
