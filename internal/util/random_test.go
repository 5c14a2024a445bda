package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	if GenerateRandomHex(0) != "" {
		t.Error("length 0 should produce empty string")
	}
	if GenerateRandomHex(-5) != "" {
		t.Error("negative length should produce empty string")
	}

	s := GenerateRandomHex(32)
	if len(s) != 32 {
		t.Fatalf("len = %d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("non-hex rune %q", r)
		}
	}
}

func TestGeneratedIDsHavePrefixes(t *testing.T) {
	if !strings.HasPrefix(GenerateTenantID(), "t_") {
		t.Error("tenant ID missing prefix")
	}
	if !strings.HasPrefix(GenerateGuarantorID(), "g_") {
		t.Error("guarantor ID missing prefix")
	}

	if GenerateTenantID() == GenerateTenantID() {
		t.Error("consecutive IDs should differ")
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("ONBOARDBOT_TEST_BOOL", "yes")
	if !ParseBoolEnv("ONBOARDBOT_TEST_BOOL", false) {
		t.Error("yes should parse as true")
	}
	t.Setenv("ONBOARDBOT_TEST_BOOL", "off")
	if ParseBoolEnv("ONBOARDBOT_TEST_BOOL", true) {
		t.Error("off should parse as false")
	}
	t.Setenv("ONBOARDBOT_TEST_BOOL", "maybe")
	if !ParseBoolEnv("ONBOARDBOT_TEST_BOOL", true) {
		t.Error("invalid value should fall back to default")
	}
	if ParseBoolEnv("ONBOARDBOT_TEST_BOOL_UNSET", false) {
		t.Error("unset should use default")
	}
}
