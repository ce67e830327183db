package normalize

import (
	"github.com/taskmill/taskmill/internal/notion"
	"github.com/taskmill/taskmill/internal/types"
)

// Blocks converts a raw block tree into canonical content blocks. Line-like
// blocks become text with conventional markdown prefixes; toggles keep their
// children nested; children of any other block are flattened in order after
// their parent. Unknown block types are dropped.
func (m *Mapper) Blocks(raw []notion.Block) []types.Block {
	var out []types.Block
	for _, b := range raw {
		out = appendBlock(out, b)
	}
	return out
}

func appendBlock(out []types.Block, b notion.Block) []types.Block {
	switch b.Type {
	case "paragraph":
		out = appendText(out, "", b.Paragraph)
	case "heading_1":
		out = appendText(out, "# ", b.Heading1)
	case "heading_2":
		out = appendText(out, "## ", b.Heading2)
	case "heading_3":
		out = appendText(out, "### ", b.Heading3)
	case "bulleted_list_item":
		out = appendText(out, "- ", b.BulletedListItem)
	case "numbered_list_item":
		out = appendText(out, "1. ", b.NumberedListItem)
	case "quote":
		out = appendText(out, "> ", b.Quote)
	case "callout":
		out = appendText(out, "> ", b.Callout)
	case "to_do":
		if b.ToDo != nil {
			prefix := "- [ ] "
			if b.ToDo.Checked {
				prefix = "- [x] "
			}
			if text := b.ToDo.RichText.Plain(); text != "" {
				out = append(out, types.Block{Kind: types.BlockText, Text: prefix + text})
			}
		}
	case "code":
		if b.Code != nil {
			out = append(out, types.Block{
				Kind:     types.BlockCode,
				Text:     b.Code.RichText.Plain(),
				Language: b.Code.Language,
			})
		}
	case "equation":
		if b.Equation != nil && b.Equation.Expression != "" {
			out = append(out, types.Block{Kind: types.BlockEquation, Expression: b.Equation.Expression})
		}
	case "toggle":
		if b.Toggle != nil {
			toggle := types.Block{Kind: types.BlockToggle, Text: b.Toggle.RichText.Plain()}
			for _, child := range b.Children {
				toggle.Children = appendBlock(toggle.Children, child)
			}
			if toggle.Text != "" || len(toggle.Children) > 0 {
				out = append(out, toggle)
			}
		}
		return out
	case "table":
		if b.Table != nil {
			out = append(out, tableBlock(b))
		}
		return out
	case "divider":
		out = append(out, types.Block{Kind: types.BlockText, Text: "---"})
	}

	// Children of non-toggle, non-table blocks (indented content) follow
	// their parent at the same level.
	for _, child := range b.Children {
		out = appendBlock(out, child)
	}
	return out
}

func appendText(out []types.Block, prefix string, p *notion.TextPayload) []types.Block {
	if p == nil {
		return out
	}
	text := p.RichText.Plain()
	if text == "" {
		return out
	}
	return append(out, types.Block{Kind: types.BlockText, Text: prefix + text})
}

// tableBlock assembles a table from its table_row children.
func tableBlock(b notion.Block) types.Block {
	t := types.Block{Kind: types.BlockTable, HasHeader: b.Table.HasColumnHeader}
	for _, child := range b.Children {
		if child.Type != "table_row" || child.TableRow == nil {
			continue
		}
		row := make([]string, 0, len(child.TableRow.Cells))
		for _, cell := range child.TableRow.Cells {
			row = append(row, cell.Plain())
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
