package common

import (
	"encoding/hex"
)

// EncodeToString returns the lowercase hex representation of hexBytes, without
// prefix. Derived block hashes are stored in this form.
func EncodeToString(hexBytes []byte) string {
	return hex.EncodeToString(hexBytes)
}
