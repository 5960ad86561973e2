package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/httputil"
	"github.com/gurulk/platform/pkg/observability"
)

type policyKind int

const (
	policyPublic policyKind = iota
	policyAuthenticated
	policyMinRole
	policyAnyOf
)

// Policy decides whether a principal may reach a route. Policies come in
// four styles: public, any authenticated principal, a role hierarchy
// floor, or an explicit allow-set with no hierarchy expansion.
type Policy struct {
	kind    policyKind
	minRole auth.Role
	allowed []auth.Role
}

// Public allows anonymous access.
func Public() Policy {
	return Policy{kind: policyPublic}
}

// Authenticated requires any valid principal.
func Authenticated() Policy {
	return Policy{kind: policyAuthenticated}
}

// MinRole requires the principal's role to satisfy min under the
// LEARNER < CONTRIBUTOR < ADMIN hierarchy.
func MinRole(min auth.Role) Policy {
	return Policy{kind: policyMinRole, minRole: min}
}

// AnyOf requires the principal's role to be in the explicit set. No
// hierarchy applies: an admin is denied unless ADMIN is listed.
func AnyOf(roles ...auth.Role) Policy {
	return Policy{kind: policyAnyOf, allowed: roles}
}

// RequiresAuth reports whether the policy needs a principal at all.
func (p Policy) RequiresAuth() bool {
	return p.kind != policyPublic
}

// Permits reports whether the principal clears the policy. The principal
// must be non-nil for any non-public policy.
func (p Policy) Permits(principal *auth.Principal) bool {
	switch p.kind {
	case policyPublic:
		return true
	case policyAuthenticated:
		return principal != nil
	case policyMinRole:
		return principal != nil && principal.Role.Satisfies(p.minRole)
	case policyAnyOf:
		return principal != nil && principal.Role.In(p.allowed...)
	default:
		return false
	}
}

// String renders the policy in the format ParsePolicy accepts.
func (p Policy) String() string {
	switch p.kind {
	case policyPublic:
		return "public"
	case policyAuthenticated:
		return "authenticated"
	case policyMinRole:
		return "min:" + string(p.minRole)
	case policyAnyOf:
		names := make([]string, len(p.allowed))
		for i, r := range p.allowed {
			names[i] = string(r)
		}
		return "any:" + strings.Join(names, ",")
	default:
		return "invalid"
	}
}

// ParsePolicy parses the textual policy form used in override files:
// "public", "authenticated", "min:ROLE" or "any:ROLE,ROLE".
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "public":
		return Public(), nil
	case s == "authenticated":
		return Authenticated(), nil
	case strings.HasPrefix(s, "min:"):
		role, err := auth.ParseRole(strings.TrimPrefix(s, "min:"))
		if err != nil {
			return Policy{}, fmt.Errorf("invalid policy %q: %w", s, err)
		}
		return MinRole(role), nil
	case strings.HasPrefix(s, "any:"):
		parts := strings.Split(strings.TrimPrefix(s, "any:"), ",")
		roles := make([]auth.Role, 0, len(parts))
		for _, part := range parts {
			role, err := auth.ParseRole(part)
			if err != nil {
				return Policy{}, fmt.Errorf("invalid policy %q: %w", s, err)
			}
			roles = append(roles, role)
		}
		if len(roles) == 0 {
			return Policy{}, fmt.Errorf("invalid policy %q: empty allow-set", s)
		}
		return AnyOf(roles...), nil
	default:
		return Policy{}, fmt.Errorf("invalid policy %q", s)
	}
}

// PolicyTable maps named routes to policies. Routes are identified by
// their mux route name; a route with no entry defaults to Authenticated
// so an unlisted route can never be reached anonymously.
type PolicyTable struct {
	policies map[string]Policy
}

// NewPolicyTable creates a table from the in-code policy map.
func NewPolicyTable(policies map[string]Policy) *PolicyTable {
	if policies == nil {
		policies = make(map[string]Policy)
	}
	return &PolicyTable{policies: policies}
}

// LoadOverrides merges route policies from a YAML file of the form
// `route.name: "min:ADMIN"`. Unknown policy strings fail loading; unknown
// route names are accepted so one file can cover several services.
func (t *PolicyTable) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing policy file: %w", err)
	}

	for name, spec := range raw {
		policy, err := ParsePolicy(spec)
		if err != nil {
			return fmt.Errorf("route %q: %w", name, err)
		}
		t.policies[name] = policy
	}
	return nil
}

// Lookup returns the policy for a route name.
func (t *PolicyTable) Lookup(name string) Policy {
	if policy, ok := t.policies[name]; ok {
		return policy
	}
	return Authenticated()
}

// Middleware enforces the table. It runs after the authentication gate:
// the gate decides who the caller is, this decides whether they get in.
// Denials carry a fixed body so responses leak nothing about roles.
func (t *PolicyTable) Middleware(logger *observability.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := ""
			if route := mux.CurrentRoute(r); route != nil {
				name = route.GetName()
			}
			policy := t.Lookup(name)

			if !policy.RequiresAuth() {
				next.ServeHTTP(w, r)
				return
			}

			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !policy.Permits(principal) {
				logger.WithField("route", name).
					WithField("userId", principal.UserID).
					Warn("access denied")
				httputil.WriteForbidden(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
