package schema

import (
	"fmt"
	"strings"
)

// maxListedDimensions bounds how many dimensions a single entity contributes
// to the LLM schema context, keeping the prompt compact for wide tables.
const maxListedDimensions = 10

// FormatForLLM renders the schema description as concise markdown for LLM
// consumption: one section per entity with its dimensions, measures, and
// related entities.
func FormatForLLM(meta *Meta) string {
	var b strings.Builder

	b.WriteString("# Database Schema\n\n")
	fmt.Fprintf(&b, "Available cubes (tables): %d\n\n", len(meta.Cubes))

	for _, cube := range meta.Cubes {
		fmt.Fprintf(&b, "## %s\n", cube.Name)
		if cube.Title != "" && cube.Title != cube.Name {
			fmt.Fprintf(&b, "**Title:** %s\n", cube.Title)
		}
		if cube.Description != "" {
			fmt.Fprintf(&b, "**Description:** %s\n", cube.Description)
		}

		if len(cube.Dimensions) > 0 {
			fmt.Fprintf(&b, "\n**Dimensions (%d):**\n", len(cube.Dimensions))
			for i, dim := range cube.Dimensions {
				if i == maxListedDimensions {
					fmt.Fprintf(&b, "  ... and %d more\n", len(cube.Dimensions)-maxListedDimensions)
					break
				}
				writeField(&b, dim)
			}
		}

		if len(cube.Measures) > 0 {
			fmt.Fprintf(&b, "\n**Measures (%d):**\n", len(cube.Measures))
			for _, measure := range cube.Measures {
				writeField(&b, measure)
			}
		}

		if len(cube.Joins) > 0 {
			names := make([]string, 0, len(cube.Joins))
			for _, j := range cube.Joins {
				names = append(names, j.Name)
			}
			fmt.Fprintf(&b, "\n**Related Cubes:** %s\n", strings.Join(names, ", "))
		}

		b.WriteString("\n---\n\n")
	}

	return b.String()
}

func writeField(b *strings.Builder, f FieldMeta) {
	fmt.Fprintf(b, "- `%s`", f.Name)
	if f.Type != "" {
		fmt.Fprintf(b, " (%s)", f.Type)
	}
	if f.Description != "" {
		desc := f.Description
		if len(desc) > 100 {
			desc = desc[:100]
		}
		fmt.Fprintf(b, ": %s", desc)
	}
	b.WriteString("\n")
}
