package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// GenerateCredentialCode builds a human-shareable credential code:
// prefix, random hex and the issue date, e.g. "TL-9f3a2c1d-20260830".
// Uniqueness is enforced by the credential_code column constraint, not here.
func GenerateCredentialCode(prefix string) string {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		randomNum, _ := rand.Int(rand.Reader, big.NewInt(0xffffffff))
		return fmt.Sprintf("%s-%08x-%s", prefix, randomNum.Int64(), time.Now().Format("20060102"))
	}
	return fmt.Sprintf("%s-%s-%s", prefix, hex.EncodeToString(raw), time.Now().Format("20060102"))
}

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GeneratePassword returns a random password of the given length drawn from
// an alphabet without look-alike characters.
func GeneratePassword(length int) string {
	if length <= 0 {
		length = 12
	}
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			n = big.NewInt(int64(i) % int64(len(passwordAlphabet)))
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out)
}
