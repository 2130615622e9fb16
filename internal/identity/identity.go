// Package identity derives the caller's identity from the mb-metadata
// request header. The header is best-effort by design: anonymous browsing
// relies on the placeholder fallback, so parse failures are never errors.
package identity

import "encoding/json"

// Header is the request header carrying the caller's JSON-encoded identity.
const Header = "mb-metadata"

type Identity struct {
	AccountID string
	PublicKey string
}

type headerPayload struct {
	AccountData struct {
		AccountID       string `json:"accountId"`
		DevicePublicKey string `json:"devicePublicKey"`
	} `json:"accountData"`
}

// FromHeader parses the header value into an Identity. The two fields
// resolve independently: a missing account id falls back to the placeholder
// account while a public key present in the header is kept. Absent or
// unparsable headers yield the placeholder with an empty key.
func FromHeader(value, fallbackAccount string) Identity {
	fallback := Identity{AccountID: fallbackAccount}

	if value == "" {
		return fallback
	}

	var payload headerPayload
	if err := json.Unmarshal([]byte(value), &payload); err != nil {
		return fallback
	}

	id := Identity{
		AccountID: payload.AccountData.AccountID,
		PublicKey: payload.AccountData.DevicePublicKey,
	}
	if id.AccountID == "" {
		id.AccountID = fallbackAccount
	}
	return id
}
