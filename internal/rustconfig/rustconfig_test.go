package rustconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RecognizedKeys(t *testing.T) {
	raw := json.RawMessage(`{"sysroot":"/opt/rust","wait_to_build_ms":250,"clippy_preference":"on","features":["foo","bar"]}`)
	res := Parse(raw, Default())
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "/opt/rust", res.Config.Sysroot)
	assert.Equal(t, 250, res.Config.WaitToBuildMs)
	assert.Equal(t, ClippyOn, res.Config.ClippyPreference)
	assert.Equal(t, []string{"foo", "bar"}, res.Config.Features)
}

func TestParse_UnknownKeyWarns(t *testing.T) {
	raw := json.RawMessage(`{"not_a_real_key":true}`)
	res := Parse(raw, Default())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "not_a_real_key")
}

func TestParse_DuplicateKeyAfterCaseNormalizationWarns(t *testing.T) {
	raw := json.RawMessage(`{"cfg_test":true,"Cfg_Test":false}`)
	res := Parse(raw, Default())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "duplicate key")
}

func TestParse_PreservesBaseForUntouchedFields(t *testing.T) {
	base := Default()
	base.RacerCompletion = true
	res := Parse(json.RawMessage(`{"sysroot":"/x"}`), base)
	assert.True(t, res.Config.RacerCompletion)
	assert.Equal(t, "/x", res.Config.Sysroot)
}
