package commissions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"coach", "COACH", " Coach "} {
		role, err := ParseRole(s)
		require.NoError(t, err, s)
		assert.Equal(t, RoleCoach, role)
	}

	_, err := ParseRole("manager")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestRoleSet(t *testing.T) {
	set := RoleSet{Closer: true}
	assert.False(t, set.Has(RoleCoach))
	assert.True(t, set.Has(RoleCloser))
	assert.False(t, set.Has(Role("unknown")))
	assert.False(t, set.Empty())
	assert.True(t, RoleSet{}.Empty())
}

func TestMilestoneFromIndex(t *testing.T) {
	for i, want := range map[int]Milestone{1: MilestoneInitial, 2: MilestoneSecond, 3: MilestoneFinal} {
		m, err := MilestoneFromIndex(i)
		require.NoError(t, err)
		assert.Equal(t, want, m)
		assert.Equal(t, i, m.Index())
	}

	for _, i := range []int{0, 4, -1} {
		_, err := MilestoneFromIndex(i)
		assert.ErrorIs(t, err, ErrInvalidMilestone)
	}

	assert.True(t, MilestoneFinal.IsFinal())
	assert.Equal(t, "second", MilestoneSecond.String())
}

func TestMilestoneZeroValuePanics(t *testing.T) {
	var m Milestone
	assert.True(t, m.IsZero())
	assert.Panics(t, func() { m.Index() })
}

func TestMilestoneJSON(t *testing.T) {
	var body struct {
		Milestone Milestone `json:"milestone"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"milestone": 3}`), &body))
	assert.Equal(t, MilestoneFinal, body.Milestone)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"milestone": 3}`, string(out))

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"milestone": 7}`), &body), ErrInvalidMilestone)
}
