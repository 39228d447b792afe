package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfilesMatchSpecTable(t *testing.T) {
	profiles := Default()
	assert.True(t, profiles[Switch4ESS].Is4ESS())
	assert.True(t, profiles[Switch4ESS].NormalizePresentation)
	assert.True(t, profiles[SwitchNI2].IsNI2())
	assert.True(t, profiles[SwitchNI2].NonISDNProgressOnSetup)
	assert.True(t, profiles[SwitchDMS100].IsDMS100())
	assert.False(t, profiles[SwitchNational].Is4ESS())
}

func TestLoadProfilesOverridesOneField(t *testing.T) {
	ini := []byte("[ni2]\nnon_isdn_progress_on_setup = false\n")
	profiles, err := LoadProfiles(ini)
	require.NoError(t, err)
	assert.False(t, profiles[SwitchNI2].NonISDNProgressOnSetup)
	// Untouched sections keep their defaults.
	assert.True(t, profiles[Switch4ESS].NormalizePresentation)
}

func TestByNameRejectsUnknown(t *testing.T) {
	_, ok := ByName("something-else")
	assert.False(t, ok)
}
