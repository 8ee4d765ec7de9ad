package accesscode

import (
	"strconv"
	"strings"
	"time"

	"github.com/pricecal/backend/pkg/logger"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// AccessCode is one row in the shared code registry. The registry lives in
// the ACCESS_CODES environment variable and is re-parsed on every use;
// records are never mutated in place.
type AccessCode struct {
	ID         string     `json:"codeId"`
	Value      string     `json:"-"`
	Role       Role       `json:"role"`
	Label      string     `json:"label,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	MaxDevices int        `json:"maxDevices,omitempty"`
}

// Expired reports whether the code's expiry is strictly in the past.
// A code with no expiry never expires.
func (c *AccessCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// expiresAt is typed by operators into env vars, so a bare date is accepted
// alongside the full timestamp form.
var expiryFormats = []string{time.RFC3339, "2006-01-02"}

func parseExpiry(raw string) *time.Time {
	for _, format := range expiryFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return &t
		}
	}
	logger.Warn("access_code_bad_expiry", map[string]interface{}{
		"value": raw,
	})
	return nil
}

// ParseAccessCodes parses the registry string: records separated by ";",
// fields separated by "|" in the order
// codeId|codeValue|role|label|expiresAt|maxDevices. Records with fewer than
// three fields, or with an empty id or value after trimming, are dropped.
// Empty input yields an empty slice, never an error.
func ParseAccessCodes(raw string) []AccessCode {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var codes []AccessCode
	for _, record := range strings.Split(raw, ";") {
		fields := strings.Split(record, "|")
		if len(fields) < 3 {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		code := AccessCode{ID: fields[0], Value: fields[1]}
		if code.ID == "" || code.Value == "" {
			continue
		}

		switch Role(strings.ToLower(fields[2])) {
		case RoleAdmin:
			code.Role = RoleAdmin
		case RoleUser:
			code.Role = RoleUser
		default:
			logger.Warn("access_code_unknown_role", map[string]interface{}{
				"code_id": code.ID,
				"role":    fields[2],
			})
			code.Role = RoleUser
		}

		if len(fields) > 3 {
			code.Label = fields[3]
		}
		if len(fields) > 4 && fields[4] != "" {
			code.ExpiresAt = parseExpiry(fields[4])
		}
		if len(fields) > 5 && fields[5] != "" {
			if n, err := strconv.Atoi(fields[5]); err == nil {
				code.MaxDevices = n
			}
		}

		codes = append(codes, code)
	}
	return codes
}

// SerializeAccessCodes is the inverse of ParseAccessCodes. Every record is
// emitted with all six fields; absent optional fields become empty strings.
// Registry updates are full round-trip re-serializations of the collection.
func SerializeAccessCodes(codes []AccessCode) string {
	records := make([]string, len(codes))
	for i, code := range codes {
		expiry := ""
		if code.ExpiresAt != nil {
			expiry = code.ExpiresAt.Format(time.RFC3339)
		}
		maxDevices := ""
		if code.MaxDevices > 0 {
			maxDevices = strconv.Itoa(code.MaxDevices)
		}
		records[i] = strings.Join([]string{
			code.ID, code.Value, string(code.Role), code.Label, expiry, maxDevices,
		}, "|")
	}
	return strings.Join(records, ";")
}

// ParseAdminCodeIDs parses the comma-separated list of code ids granted
// administrator capability. Entries are trimmed; empty entries are dropped.
func ParseAdminCodeIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
