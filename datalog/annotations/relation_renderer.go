package annotations

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// RelationRenderer colors relation names for the console annotation
// stream. Query result tuples are rendered by the package-level
// RenderTuples, not by this type.
type RelationRenderer struct {
	useColor bool
}

// NewRelationRenderer creates a new relation renderer.
func NewRelationRenderer(useColor bool) *RelationRenderer {
	return &RelationRenderer{useColor: useColor}
}

func (r *RelationRenderer) colorizeName(name string) string {
	if !r.useColor {
		return name
	}
	return color.CyanString(name)
}

// RenderTuples renders a query's result rows as a markdown table. Each
// row must already be stringified in argument order; columns are
// headed by position since a pattern query carries no column names.
func RenderTuples(rows [][]string, arity int) string {
	if len(rows) == 0 {
		return "(no matches)"
	}
	headers := make([]string, arity)
	for i := range headers {
		headers[i] = fmt.Sprintf("col%d", i)
	}
	alignment := make([]tw.Align, arity)
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	var sb strings.Builder
	table := tablewriter.NewTable(&sb,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	sb.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))
	return sb.String()
}
