package claims

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"

	contract "attesta/contracts/identity"
	id "attesta/pkg/domain"
)

// DeriveVerificationHash computes the keccak-256 linkage hash the on-chain
// registry expects when the issuer does not supply one. Topics with a
// contract code hash the numeric code so the digest matches the on-chain
// encoding; platform-only topics hash the topic id string.
func DeriveVerificationHash(address id.Address, topic id.TopicID, issuer id.IssuerID, issuedAt time.Time) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(address))
	if code, ok := contract.TopicCode(topic.String()); ok {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], code)
		h.Write(buf[:])
	} else {
		h.Write([]byte(topic))
	}
	h.Write([]byte(issuer))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(issuedAt.Unix()))
	h.Write(ts[:])
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
