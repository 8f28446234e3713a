// Package ui renders soda's terminal output: the banner, the run
// configuration, status lines and traversal summaries. Everything goes to
// stderr so stdout stays free for machine-readable output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/soda-recon/soda/pkg/defaults"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	output      io.Writer = os.Stderr
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses everything but errors)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// SetOutput redirects UI output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	uiMu.Lock()
	defer uiMu.Unlock()
	prev := output
	output = w
	return prev
}

// Output is the writer UI output currently goes to.
func Output() io.Writer {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return output
}

// writer returns the output writer, or io.Discard in silent mode.
func writer() io.Writer {
	uiMu.RLock()
	defer uiMu.RUnlock()
	if silentMode {
		return io.Discard
	}
	return output
}

const bannerArt = `
                    __
   _________  ____/ /___ _
  / ___/ __ \/ __  / __ '/
 (__  ) /_/ / /_/ / /_/ /
/____/\____/\__,_/\__,_/
`

const bannerSeparator = "________________________________________________"

// PrintBanner prints the application banner with version info
func PrintBanner() {
	w := writer()
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "          v%s  web structure discovery\n\n", VersionStyle.Render(defaults.Version))
}

// Option is one line of the configuration banner.
type Option struct {
	Name  string
	Value string
}

// PrintConfigBanner prints the run configuration in ffuf style, in the
// order given. Options with an empty value are skipped.
func PrintConfigBanner(options []Option) {
	w := writer()
	fmt.Fprintln(w, DividerStyle.Render(bannerSeparator))
	fmt.Fprintln(w)
	for _, o := range options {
		if o.Value == "" {
			continue
		}
		fmt.Fprintf(w, " :: %s : %s\n",
			ConfigLabelStyle.Render(fmt.Sprintf("%-14s", o.Name)),
			ConfigValueStyle.Render(o.Value))
	}
	fmt.Fprintln(w, DividerStyle.Render(bannerSeparator))
	fmt.Fprintln(w)
}

// PrintDivider prints a horizontal divider
func PrintDivider() {
	fmt.Fprintln(writer(), DividerStyle.Render(bannerSeparator))
}

// PrintSection prints a section header
func PrintSection(title string) {
	w := writer()
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render(title))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintln(writer(), SuccessStyle.Render(Icon("✓", "[+]"))+" "+message)
}

// PrintError prints an error message. Errors are shown in silent mode too.
func PrintError(message string) {
	fmt.Fprintln(Output(), ErrorStyle.Render(Icon("✗", "[-]"))+" "+message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintln(writer(), WarningStyle.Render(Icon("!", "[!]"))+" "+message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Fprintln(writer(), InfoStyle.Render(Icon("i", "[*]"))+" "+message)
}
