package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/contextkeys"
	"github.com/gurulk/platform/pkg/httputil"
)

// TestPolicyPermits covers the four policy styles against every role.
func TestPolicyPermits(t *testing.T) {
	learner := &auth.Principal{UserID: 1, Role: auth.RoleLearner}
	contributor := &auth.Principal{UserID: 2, Role: auth.RoleContributor}
	admin := &auth.Principal{UserID: 3, Role: auth.RoleAdmin}

	tests := []struct {
		name      string
		policy    Policy
		principal *auth.Principal
		want      bool
	}{
		{"public anonymous", Public(), nil, true},
		{"public learner", Public(), learner, true},
		{"authenticated anonymous", Authenticated(), nil, false},
		{"authenticated learner", Authenticated(), learner, true},
		{"min contributor denies learner", MinRole(auth.RoleContributor), learner, false},
		{"min contributor allows contributor", MinRole(auth.RoleContributor), contributor, true},
		{"min contributor allows admin", MinRole(auth.RoleContributor), admin, true},
		{"min admin denies contributor", MinRole(auth.RoleAdmin), contributor, false},
		{"anyof allows listed", AnyOf(auth.RoleLearner, auth.RoleContributor), learner, true},
		{"anyof denies admin not listed", AnyOf(auth.RoleLearner, auth.RoleContributor), admin, false},
		{"anyof anonymous", AnyOf(auth.RoleLearner), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Permits(tt.principal))
		})
	}
}

// TestParsePolicy verifies the textual policy forms used by override
// files.
func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "public", want: "public"},
		{input: "authenticated", want: "authenticated"},
		{input: "min:ADMIN", want: "min:ADMIN"},
		{input: "min:contributor", want: "min:CONTRIBUTOR"},
		{input: "any:LEARNER,CONTRIBUTOR", want: "any:LEARNER,CONTRIBUTOR"},
		{input: "min:SUPERUSER", wantErr: true},
		{input: "any:", wantErr: true},
		{input: "nonsense", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			policy, err := ParsePolicy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, policy.String())
		})
	}
}

func newPolicyRouter(table *PolicyTable) *mux.Router {
	router := mux.NewRouter()
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	router.HandleFunc("/questions", ok).Methods(http.MethodGet).Name("questions.list")
	router.HandleFunc("/questions", ok).Methods(http.MethodPost).Name("questions.create")
	router.HandleFunc("/answers", ok).Methods(http.MethodPost).Name("answers.create")
	router.HandleFunc("/votes", ok).Methods(http.MethodPost).Name("votes.create")
	router.HandleFunc("/unlisted", ok).Methods(http.MethodGet).Name("unlisted.route")
	router.Use(table.Middleware(testLogger()))
	return router
}

func communityTable() *PolicyTable {
	return NewPolicyTable(map[string]Policy{
		"questions.list":   Public(),
		"questions.create": MinRole(auth.RoleLearner),
		"answers.create":   MinRole(auth.RoleContributor),
		"votes.create":     AnyOf(auth.RoleLearner, auth.RoleContributor),
	})
}

func doPolicyRequest(t *testing.T, router *mux.Router, method, path string, principal *auth.Principal) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if principal != nil {
		req = req.WithContext(contextkeys.WithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestPolicyTableEnforcement drives the policy middleware through a
// router shaped like the community service.
func TestPolicyTableEnforcement(t *testing.T) {
	router := newPolicyRouter(communityTable())

	learner := &auth.Principal{UserID: 1, Username: "nimal", Role: auth.RoleLearner}
	contributor := &auth.Principal{UserID: 2, Username: "kamala", Role: auth.RoleContributor}
	admin := &auth.Principal{UserID: 3, Username: "root", Role: auth.RoleAdmin}

	tests := []struct {
		name      string
		method    string
		path      string
		principal *auth.Principal
		want      int
	}{
		{"public list anonymous", http.MethodGet, "/questions", nil, http.StatusOK},
		{"create question anonymous", http.MethodPost, "/questions", nil, http.StatusUnauthorized},
		{"create question learner", http.MethodPost, "/questions", learner, http.StatusOK},
		{"create answer learner", http.MethodPost, "/answers", learner, http.StatusForbidden},
		{"create answer contributor", http.MethodPost, "/answers", contributor, http.StatusOK},
		{"create answer admin", http.MethodPost, "/answers", admin, http.StatusOK},
		{"vote learner", http.MethodPost, "/votes", learner, http.StatusOK},
		{"vote admin denied", http.MethodPost, "/votes", admin, http.StatusForbidden},
		{"unlisted route anonymous", http.MethodGet, "/unlisted", nil, http.StatusUnauthorized},
		{"unlisted route authenticated", http.MethodGet, "/unlisted", learner, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doPolicyRequest(t, router, tt.method, tt.path, tt.principal)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

// TestPolicyDenialBody verifies a 403 leaks nothing beyond the fixed
// message.
func TestPolicyDenialBody(t *testing.T) {
	router := newPolicyRouter(communityTable())
	admin := &auth.Principal{UserID: 3, Username: "root", Role: auth.RoleAdmin}

	rec := doPolicyRequest(t, router, http.MethodPost, "/votes", admin)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusForbidden, body.Status)
	assert.Equal(t, "Access denied", body.Message)
	assert.NotContains(t, rec.Body.String(), "ADMIN")
	assert.NotContains(t, rec.Body.String(), "root")
}

// TestPolicyTableOverrides verifies YAML overrides replace in-code
// policies and reject bad policy strings.
func TestPolicyTableOverrides(t *testing.T) {
	table := communityTable()

	path := filepath.Join(t.TempDir(), "policies.yaml")
	content := "questions.create: \"min:ADMIN\"\nextra.route: \"public\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, table.LoadOverrides(path))

	router := newPolicyRouter(table)
	learner := &auth.Principal{UserID: 1, Role: auth.RoleLearner}

	rec := doPolicyRequest(t, router, http.MethodPost, "/questions", learner)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	badPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("questions.create: \"min:SUPERUSER\"\n"), 0o600))
	assert.Error(t, table.LoadOverrides(badPath))
}
