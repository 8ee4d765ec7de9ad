package accesscode

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidCode = errors.New("invalid access code")
	ErrCodeExpired = errors.New("access code has expired")
)

// Match is the result of a successful validation: either a matched registry
// code, or the bootstrap identity with no code attached.
type Match struct {
	Code      *AccessCode
	Bootstrap bool
}

// IsAdmin reports whether a code carries true admin capability: its role
// must be admin AND its id must appear in the admin id list. The role field
// alone is not sufficient.
func IsAdmin(code *AccessCode, adminIDs []string) bool {
	if code == nil || code.Role != RoleAdmin {
		return false
	}
	for _, id := range adminIDs {
		if id == code.ID {
			return true
		}
	}
	return false
}

// InBootstrapMode reports whether the deployment has no usable admin code:
// the admin id list is empty, or no registry code is both role=admin and
// listed in it. While in bootstrap mode the separately configured bootstrap
// secret grants admin access.
func InBootstrapMode(codes []AccessCode, adminIDs []string) bool {
	if len(adminIDs) == 0 {
		return true
	}
	for i := range codes {
		if IsAdmin(&codes[i], adminIDs) {
			return false
		}
	}
	return true
}

// Validate checks a submitted access code against the registry. The
// submitted value is trimmed and matched case-insensitively; the bootstrap
// secret is matched exactly. Expiry is evaluated at call time.
func Validate(submitted string, codes []AccessCode, adminIDs []string, bootstrapSecret string) (*Match, error) {
	submitted = strings.TrimSpace(submitted)

	if bootstrapSecret != "" && InBootstrapMode(codes, adminIDs) && submitted == bootstrapSecret {
		return &Match{Bootstrap: true}, nil
	}

	for i := range codes {
		code := &codes[i]
		if !strings.EqualFold(code.Value, submitted) {
			continue
		}
		if code.Expired(time.Now()) {
			return nil, ErrCodeExpired
		}
		return &Match{Code: code}, nil
	}

	return nil, ErrInvalidCode
}
