package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"
)

// TimestampLayout is the timestamp format the bank expects in signed
// requests: RFC 3339 with millisecond precision, Jakarta offset.
const TimestampLayout = "2006-01-02T15:04:05.000-07:00"

// jakarta is UTC+7, the fixed offset the bank validates timestamps against.
var jakarta = time.FixedZone("WIB", 7*3600)

// Timestamp formats t the way the signing contract requires.
func Timestamp(t time.Time) string {
	return t.In(jakarta).Format(TimestampLayout)
}

/* Sign produces the keyed digest the bank verifies on every call:
 * base64(HMAC-SHA256(staticKey, key + ":" + timestamp + ":" + body)).
 * For the login exchange the key is the API key; for callback delivery it is
 * the current access token. The body must be the exact bytes transmitted:
 * sign once, after the request body is finalized.
 */
func Sign(staticKey, key, timestamp string, body []byte) string {
	message := fmt.Sprintf("%s:%s:%s", key, timestamp, body)

	mac := hmac.New(sha256.New, []byte(staticKey))
	mac.Write([]byte(message))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the digest and compares it in constant time.
// Returns true if the signature matches.
func Verify(staticKey, key, timestamp string, body []byte, expected string) bool {
	calculated := Sign(staticKey, key, timestamp, body)
	return subtle.ConstantTimeCompare([]byte(calculated), []byte(expected)) == 1
}
