package matching

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// matchJWTClaims decodes the bearer token from the Authorization header
// without verifying its signature and compares the expected claims.
func matchJWTClaims(expected map[string]interface{}, headers http.Header) bool {
	auth := headers.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return false
	}

	for name, want := range expected {
		got, ok := claims[name]
		if !ok {
			return false
		}
		if !claimMatches(got, want) {
			return false
		}
	}
	return true
}

// claimMatches compares a claim value; array claims such as "aud" match when
// any element equals the expected value.
func claimMatches(got, want interface{}) bool {
	if valuesEqual(got, want) {
		return true
	}
	if list, ok := got.([]interface{}); ok {
		for _, item := range list {
			if valuesEqual(item, want) {
				return true
			}
		}
	}
	return false
}
