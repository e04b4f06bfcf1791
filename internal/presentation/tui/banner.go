package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`            _                  _     `, "#818cf8"},
	{` __      __(_)___  __ _ _ __ __| |___ `, "#a78bfa"},
	{` \ \ /\ / /| |_  // _' | '__/ _' / __|`, "#c084fc"},
	{`  \ V  V / | |/ /| (_| | | | (_| \__ \`, "#e879f9"},
	{`   \_/\_/  |_/___|\__,_|_|  \__,_|___/`, "#f472b6"},
}

// PrintBanner writes the wizards banner followed by version to w.
// Colors are dropped when w is not a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("   query assistant "+version).Faint())
	fmt.Fprintln(w)
}
