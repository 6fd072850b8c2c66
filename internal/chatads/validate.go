package chatads

import (
	"net/netip"
	"strings"
	"unicode/utf8"
)

const (
	minMessageWords = 2
	maxMessageWords = 100
	maxMessageChars = 2000
)

// ValidateRequest rejects malformed requests before any network call. Checks
// run in a fixed order and short-circuit at the first failure. Pure function
// of its inputs; no I/O.
func ValidateRequest(req Request, credential string) *APIError {
	if strings.TrimSpace(credential) == "" {
		return newValidationError(CodeConfigurationError, MissingCredentialText)
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return newValidationError(CodeInvalidInput, "Message cannot be empty")
	}

	words := len(strings.Fields(message))
	if words < minMessageWords {
		return newValidationError(CodeMessageTooShort, "Message must contain at least 2 words")
	}
	if words > maxMessageWords {
		return newValidationError(CodeMessageTooManyWords, "Message must contain at most 100 words")
	}
	if utf8.RuneCountInString(req.Message) > maxMessageChars {
		return newValidationError(CodeMessageTooLong, "Message must be at most 2000 characters")
	}

	if req.IP != "" {
		if _, err := netip.ParseAddr(req.IP); err != nil {
			return newValidationError(CodeInvalidInput, "Invalid IP address")
		}
	}
	if req.Country != "" && !isUpperAlpha2(req.Country) {
		return newValidationError(CodeInvalidInput, "Country must be a 2-letter uppercase ISO 3166-1 alpha-2 code")
	}
	if req.Language != "" && !isLowerAlpha2(req.Language) {
		return newValidationError(CodeInvalidInput, "Language must be a 2-letter lowercase ISO 639-1 code")
	}
	return nil
}

func isUpperAlpha2(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
}

func isLowerAlpha2(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= 'a' && s[0] <= 'z' && s[1] >= 'a' && s[1] <= 'z'
}
