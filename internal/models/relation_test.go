package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationNormalisesShapes(t *testing.T) {
	cases := map[string]struct {
		raw     string
		present bool
	}{
		"object":      {raw: `{"id":"t1","full_name":"Ana"}`, present: true},
		"array":       {raw: `[{"id":"t1","full_name":"Ana"},{"id":"t2"}]`, present: true},
		"empty array": {raw: `[]`, present: false},
		"null":        {raw: `null`, present: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var rel Relation[ProfileSummary]
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &rel))
			assert.Equal(t, tc.present, rel.Present())
			if tc.present {
				v, ok := rel.Get()
				require.True(t, ok)
				assert.Equal(t, "t1", v.ID)
				assert.Equal(t, "Ana", v.FullName)
			}
		})
	}
}

func TestRelationScanAndMarshal(t *testing.T) {
	var rel Relation[RecordedLecture]
	require.NoError(t, rel.Scan([]byte(`[{"id":"r1","video_url":"https://v"}]`)))
	out, err := json.Marshal(rel)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"video_url":"https://v"`)

	require.NoError(t, rel.Scan(nil))
	out, err = json.Marshal(rel)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	assert.Error(t, rel.Scan(42))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleTeacher.Valid())
	assert.False(t, Role("SUPERADMIN").Valid())
}
