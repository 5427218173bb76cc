package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendFileMarker(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{name: "empty", text: "", want: "File: https://f/1"},
		{name: "blank", text: " \n", want: "File: https://f/1"},
		{name: "with text", text: "Aug 20 - Jun 5\n", want: "Aug 20 - Jun 5\nFile: https://f/1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AppendFileMarker(tc.text, "https://f/1"))
		})
	}
}

func TestAdminClaimsHasScope(t *testing.T) {
	var nilClaims *AdminClaims
	assert.False(t, nilClaims.HasScope(AdminScopeRuns))
	assert.True(t, (&AdminClaims{Scopes: []string{AdminScopeRuns}}).HasScope(AdminScopeRuns))
	assert.True(t, (&AdminClaims{Scopes: []string{"*"}}).HasScope(AdminScopeRuns))
	assert.False(t, (&AdminClaims{Scopes: []string{"runs:write"}}).HasScope(AdminScopeRuns))
}

func TestStageOutcomesRoundTripThroughDriver(t *testing.T) {
	outcomes := StageOutcomes{
		{Stage: StageCreateParent, OK: true},
		{Stage: StageCreateChild, Subject: "Math", Error: "boom"},
		{Stage: StageNotify, Skipped: true},
	}
	assert.Equal(t, 1, outcomes.Failures())

	raw, err := outcomes.Value()
	require.NoError(t, err)

	var decoded StageOutcomes
	require.NoError(t, decoded.Scan(raw))
	assert.Equal(t, outcomes, decoded)

	require.NoError(t, decoded.Scan([]byte(`[]`)))
	assert.Empty(t, decoded)
	require.Error(t, decoded.Scan(42))

	empty, err := StageOutcomes(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}
