package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// Theme returns the fyne theme for a config name. Anything but "dark" is
// the light theme.
func Theme(name string) fyne.Theme {
	if strings.ToLower(name) == "dark" {
		return theme.DarkTheme()
	}
	return theme.LightTheme()
}
