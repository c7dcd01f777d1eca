package cmd

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func intOrDash(v *int) any {
	if v == nil {
		return "-"
	}
	return *v
}
