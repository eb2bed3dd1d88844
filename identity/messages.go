package identity

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the IdentityService contract (user.proto).
//
//	message GetUserContextRequest { string firebase_uid = 1; }
//	message UserContextResponse {
//	  string user_id = 1;
//	  string email = 2;
//	  string organization_id = 3;
//	  string role = 4;
//	}
const (
	fieldFirebaseUID protowire.Number = 1

	fieldUserID         protowire.Number = 1
	fieldEmail          protowire.Number = 2
	fieldOrganizationID protowire.Number = 3
	fieldRole           protowire.Number = 4
)

// GetUserContextRequest asks the identity service to resolve a provider subject
type GetUserContextRequest struct {
	FirebaseUID string
}

// UserContextResponse is the organization/role context for a user.
// Role is a plain string on the wire; callers must check it against the closed enum.
type UserContextResponse struct {
	UserID         string `validate:"required"`
	Email          string `validate:"omitempty,max=320"`
	OrganizationID string `validate:"required"`
	Role           string `validate:"required,oneof=OWNER ADMIN USER"`
}

func (m *GetUserContextRequest) marshalWire() []byte {
	return appendString(nil, fieldFirebaseUID, m.FirebaseUID)
}

func (m *GetUserContextRequest) unmarshalWire(b []byte) error {
	*m = GetUserContextRequest{}
	return consumeStrings(b, map[protowire.Number]*string{
		fieldFirebaseUID: &m.FirebaseUID,
	})
}

func (m *UserContextResponse) marshalWire() []byte {
	var b []byte
	b = appendString(b, fieldUserID, m.UserID)
	b = appendString(b, fieldEmail, m.Email)
	b = appendString(b, fieldOrganizationID, m.OrganizationID)
	b = appendString(b, fieldRole, m.Role)
	return b
}

func (m *UserContextResponse) unmarshalWire(b []byte) error {
	*m = UserContextResponse{}
	return consumeStrings(b, map[protowire.Number]*string{
		fieldUserID:         &m.UserID,
		fieldEmail:          &m.Email,
		fieldOrganizationID: &m.OrganizationID,
		fieldRole:           &m.Role,
	})
}

// errInvalidUTF8 rejects string fields that proto3 requires to be valid UTF-8
var errInvalidUTF8 = errors.New("string field contains invalid UTF-8")

// appendString encodes a proto3 string field; empty strings are omitted.
func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// consumeStrings decodes the string fields named in dst and skips
// everything else, as proto3 does for unknown fields.
func consumeStrings(b []byte, dst map[protowire.Number]*string) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if target, ok := dst[num]; ok && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if !utf8.ValidString(v) {
				return fmt.Errorf("field %d: %w", num, errInvalidUTF8)
			}
			*target = v
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
