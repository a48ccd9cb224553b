package ui

import (
	"io"
	"strings"

	"github.com/fatih/color"
)

// EntityRow is one line of the entity listing
type EntityRow struct {
	Key        string
	Kind       string
	Identifier string
	Mixins     []string
	Source     string
}

// RenderEntityTable writes the entity listing as a table
func RenderEntityTable(out io.Writer, rows []EntityRow) {
	table := NewTable(out, []string{"Key", "Type", "Identifier", "Mixins", "From"})

	for _, row := range rows {
		kind := row.Kind
		if supportsColor {
			switch row.Kind {
			case "application package", "application":
				kind = color.CyanString(row.Kind)
			case "compute pool", "service":
				kind = color.GreenString(row.Kind)
			case "function", "procedure":
				kind = color.YellowString(row.Kind)
			}
		}

		mixins := "-"
		if len(row.Mixins) > 0 {
			mixins = strings.Join(row.Mixins, ",")
		}
		source := row.Source
		if source == "" {
			source = "-"
		}

		table.Append([]string{row.Key, kind, row.Identifier, mixins, source})
	}

	table.Render()
}
