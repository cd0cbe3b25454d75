package utils

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// PendingIntent is a credit-check request deferred through the login
// redirect. It travels as the base64-encoded `data` query parameter and
// must decode back to exactly the submitted field values.
//
// TODO: replace the encoded-in-URL carry with a server-held continuation
// token so the name and mobile number never appear in a shareable URL.
type PendingIntent struct {
	FirstName    string `json:"first_name"`
	MobileNumber string `json:"mobile_number"`
	Consent      bool   `json:"consent"`
}

// EncodeIntent serializes a pending intent for transport in a URL.
func EncodeIntent(intent PendingIntent) (string, error) {
	raw, err := json.Marshal(intent)
	if err != nil {
		return "", fmt.Errorf("marshal pending intent: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// DecodeIntent restores a pending intent from its encoded form.
func DecodeIntent(encoded string) (PendingIntent, error) {
	var intent PendingIntent

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		// Tolerate standard encoding produced by older clients.
		raw, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return intent, fmt.Errorf("decode pending intent: %w", err)
		}
	}

	if err := json.Unmarshal(raw, &intent); err != nil {
		return intent, fmt.Errorf("unmarshal pending intent: %w", err)
	}

	return intent, nil
}
