package models

import "github.com/golang-jwt/jwt/v5"

// AdminScopeRuns grants read access to the submission ledger.
const AdminScopeRuns = "runs:read"

// AdminClaims are carried by operator tokens issued with intakectl.
type AdminClaims struct {
	Operator string   `json:"operator"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether scope was granted.
func (c *AdminClaims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}
