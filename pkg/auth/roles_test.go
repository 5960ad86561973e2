package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseRole verifies case-insensitive parsing into the closed role set
func TestParseRole(t *testing.T) {
	tests := []struct {
		input    string
		expected Role
		wantErr  bool
	}{
		{"LEARNER", RoleLearner, false},
		{"learner", RoleLearner, false},
		{"Contributor", RoleContributor, false},
		{"  admin  ", RoleAdmin, false},
		{"ADMIN", RoleAdmin, false},
		{"superuser", "", true},
		{"", "", true},
		{"ROLE_ADMIN", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			role, err := ParseRole(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, role)
		})
	}
}

// TestRoleSatisfies verifies the ADMIN > CONTRIBUTOR > LEARNER hierarchy
func TestRoleSatisfies(t *testing.T) {
	tests := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleAdmin, RoleLearner, true},
		{RoleAdmin, RoleContributor, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleContributor, RoleLearner, true},
		{RoleContributor, RoleContributor, true},
		{RoleContributor, RoleAdmin, false},
		{RoleLearner, RoleLearner, true},
		{RoleLearner, RoleContributor, false},
		{RoleLearner, RoleAdmin, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"_vs_"+string(tt.min), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Satisfies(tt.min))
		})
	}

	// Unknown roles never satisfy anything
	assert.False(t, Role("GUEST").Satisfies(RoleLearner))
	assert.False(t, RoleAdmin.Satisfies(Role("GUEST")))
}

// TestRoleIn verifies explicit allow-set membership without hierarchy expansion
func TestRoleIn(t *testing.T) {
	// Admins are not in the voter allow-set even though they outrank it
	assert.False(t, RoleAdmin.In(RoleLearner, RoleContributor))
	assert.True(t, RoleLearner.In(RoleLearner, RoleContributor))
	assert.True(t, RoleContributor.In(RoleLearner, RoleContributor))
	assert.False(t, RoleLearner.In())
}

// TestParseLanguage verifies optional language parsing
func TestParseLanguage(t *testing.T) {
	lang, err := ParseLanguage("sinhala")
	require.NoError(t, err)
	assert.Equal(t, LanguageSinhala, lang)

	lang, err = ParseLanguage("")
	require.NoError(t, err)
	assert.Equal(t, Language(""), lang)

	_, err = ParseLanguage("FRENCH")
	assert.Error(t, err)
}
