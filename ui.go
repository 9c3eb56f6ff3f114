package fdiff

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	InfoColor    = color.New(color.FgCyan)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
)

// Console is where status messages go. Previews and reports are written by
// the command itself.
var Console io.Writer = os.Stderr

// DisableColor turns off colour for every helper and the report styles.
func DisableColor() {
	color.NoColor = true
	disableReportColor()
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(Console, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(Console, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(Console, format+"\n", a...)
}
