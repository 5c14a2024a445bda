package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID in the format "{prefix}{hex}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified
// length. Non-cryptographic.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateTenantID generates a unique tenant ID with "t_" prefix.
func GenerateTenantID() string {
	return GenerateRandomID("t_", 32)
}

// GenerateGuarantorID generates a unique guarantor ID with "g_" prefix.
func GenerateGuarantorID() string {
	return GenerateRandomID("g_", 32)
}
