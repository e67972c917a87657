package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThemeByName(t *testing.T) {
	assert.False(t, ThemeByName("light").IsDark)
	assert.True(t, ThemeByName("dark").IsDark)
	assert.True(t, ThemeByName("DARK").IsDark)
}

func TestDetectThemeFromColorFGBG(t *testing.T) {
	cases := []struct {
		value    string
		wantDark bool
	}{
		{"15;0", true},
		{"0;15", false},
		{"12;8", true},
		{"garbage", false},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("RFPCHAT_DARK_MODE", "")
			t.Setenv("COLORFGBG", tc.value)
			assert.Equal(t, tc.wantDark, DetectTheme().IsDark)
		})
	}
}

func TestDetectThemeEnvOverride(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("RFPCHAT_DARK_MODE", "1")
	assert.True(t, DetectTheme().IsDark)
}

func TestRenderDivider(t *testing.T) {
	s := NewStyles(LightTheme())
	assert.NotEmpty(t, s.RenderDivider(10))
}
