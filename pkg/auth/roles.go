package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownRole is returned by ParseRole for anything outside the
	// closed role set.
	ErrUnknownRole = errors.New("invalid role")
	// ErrUnknownLanguage is returned by ParseLanguage for anything
	// outside the closed language set.
	ErrUnknownLanguage = errors.New("invalid preferred language")
)

// Role is the closed set of platform roles. The zero value is invalid;
// roles are parsed exactly once at the trust boundary via ParseRole.
type Role string

const (
	RoleLearner     Role = "LEARNER"
	RoleContributor Role = "CONTRIBUTOR"
	RoleAdmin       Role = "ADMIN"
)

// roleRank orders roles for hierarchy checks: ADMIN > CONTRIBUTOR > LEARNER.
var roleRank = map[Role]int{
	RoleLearner:     1,
	RoleContributor: 2,
	RoleAdmin:       3,
}

// ParseRole parses a role name case-insensitively. This is the single place
// role strings cross into the typed domain.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleLearner:
		return RoleLearner, nil
	case RoleContributor:
		return RoleContributor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Satisfies reports whether r meets a minimum-role requirement through the
// hierarchy: ADMIN satisfies CONTRIBUTOR, CONTRIBUTOR satisfies LEARNER.
func (r Role) Satisfies(min Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	mr, ok := roleRank[min]
	if !ok {
		return false
	}
	return rr >= mr
}

// In reports whether r is a member of an explicit allow-set. No hierarchy
// expansion is applied; use Satisfies for minimum-role policies.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Language is the optional preferred-language attribute on a principal.
type Language string

const (
	LanguageSinhala Language = "SINHALA"
	LanguageTamil   Language = "TAMIL"
	LanguageEnglish Language = "ENGLISH"
)

// ParseLanguage parses a language name case-insensitively. Empty input is
// allowed and returns the empty Language (the attribute is optional).
func ParseLanguage(s string) (Language, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	switch Language(strings.ToUpper(strings.TrimSpace(s))) {
	case LanguageSinhala:
		return LanguageSinhala, nil
	case LanguageTamil:
		return LanguageTamil, nil
	case LanguageEnglish:
		return LanguageEnglish, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
}

func (l Language) String() string {
	return string(l)
}
