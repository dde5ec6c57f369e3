package util

import (
	"encoding/base64"
	"strings"
)

// FixAndDecodeURLBase64 decodes base64url with or without padding
func FixAndDecodeURLBase64(base64String string) ([]byte, error) {
	base64String = strings.TrimRight(base64String, "=")
	switch len(base64String) % 4 {
	case 2:
		base64String += "=="
	case 3:
		base64String += "="
	}

	return base64.URLEncoding.DecodeString(base64String)
}

// Contains reports whether s is in list (case sensitive)
func Contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
