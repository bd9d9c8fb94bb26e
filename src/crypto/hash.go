package crypto

import (
	"crypto/sha256"

	"github.com/mosaicnetworks/ledgerfront/src/common"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// SHA256Hex returns the SHA256 hash of the data as a lowercase hex string.
func SHA256Hex(data []byte) string {
	return common.EncodeToString(SHA256(data))
}
