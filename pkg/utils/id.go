package utils

import "crypto/rand"

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// LocalIDLength matches the identifier length peers exchange over
// signaling.
const LocalIDLength = 4

// RandomID generates a uniformly random alphanumeric identifier of the
// given length.
func RandomID(length int) string {
	// Bytes at or above limit are rejected: 256 is not a multiple of the
	// alphabet size, so a plain modulo would skew the low symbols.
	const limit = 256 - 256%len(idAlphabet)

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			panic("utils: reading random bytes: " + err.Error())
		}
		for _, v := range buf {
			if int(v) >= limit {
				continue
			}
			out = append(out, idAlphabet[int(v)%len(idAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out)
}
