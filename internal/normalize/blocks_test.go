package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/taskmill/internal/notion"
	"github.com/taskmill/taskmill/internal/types"
)

func payload(s string) *notion.TextPayload {
	return &notion.TextPayload{RichText: text(s)}
}

func TestBlocksTextKinds(t *testing.T) {
	raw := []notion.Block{
		{Type: "heading_1", Heading1: payload("Overview")},
		{Type: "paragraph", Paragraph: payload("Some context.")},
		{Type: "bulleted_list_item", BulletedListItem: payload("point one")},
		{Type: "numbered_list_item", NumberedListItem: payload("step one")},
		{Type: "to_do", ToDo: &notion.ToDoPayload{RichText: text("write tests"), Checked: true}},
		{Type: "to_do", ToDo: &notion.ToDoPayload{RichText: text("ship it")}},
		{Type: "quote", Quote: payload("measure twice")},
		{Type: "divider"},
		{Type: "paragraph", Paragraph: payload("")}, // empty dropped
	}

	blocks := NewMapper().Blocks(raw)
	var lines []string
	for _, b := range blocks {
		lines = append(lines, b.Text)
	}
	assert.Equal(t, []string{
		"# Overview",
		"Some context.",
		"- point one",
		"1. step one",
		"- [x] write tests",
		"- [ ] ship it",
		"> measure twice",
		"---",
	}, lines)
}

func TestBlocksCodeAndEquation(t *testing.T) {
	raw := []notion.Block{
		{Type: "code", Code: &notion.CodePayload{RichText: text("fmt.Println(1)"), Language: "go"}},
		{Type: "equation", Equation: &notion.EquationPayload{Expression: "e=mc^2"}},
	}

	blocks := NewMapper().Blocks(raw)
	require.Len(t, blocks, 2)
	assert.Equal(t, types.BlockCode, blocks[0].Kind)
	assert.Equal(t, "go", blocks[0].Language)
	assert.Equal(t, "fmt.Println(1)", blocks[0].Text)
	assert.Equal(t, types.BlockEquation, blocks[1].Kind)
	assert.Equal(t, "e=mc^2", blocks[1].Expression)
}

func TestBlocksToggleKeepsChildrenNested(t *testing.T) {
	raw := []notion.Block{
		{
			Type:        "toggle",
			Toggle:      payload("Details"),
			HasChildren: true,
			Children: []notion.Block{
				{Type: "paragraph", Paragraph: payload("hidden line")},
				{Type: "toggle", Toggle: payload("Nested"), Children: []notion.Block{
					{Type: "paragraph", Paragraph: payload("deeper")},
				}},
			},
		},
	}

	blocks := NewMapper().Blocks(raw)
	require.Len(t, blocks, 1)
	toggle := blocks[0]
	assert.Equal(t, types.BlockToggle, toggle.Kind)
	assert.Equal(t, "Details", toggle.Text)
	require.Len(t, toggle.Children, 2)
	assert.Equal(t, "hidden line", toggle.Children[0].Text)
	assert.Equal(t, types.BlockToggle, toggle.Children[1].Kind)
	require.Len(t, toggle.Children[1].Children, 1)
	assert.Equal(t, "deeper", toggle.Children[1].Children[0].Text)
}

func TestBlocksTableAssembly(t *testing.T) {
	raw := []notion.Block{
		{
			Type:        "table",
			Table:       &notion.TablePayload{TableWidth: 2, HasColumnHeader: true},
			HasChildren: true,
			Children: []notion.Block{
				{Type: "table_row", TableRow: &notion.TableRowPayload{Cells: []notion.RichText{text("name"), text("count")}}},
				{Type: "table_row", TableRow: &notion.TableRowPayload{Cells: []notion.RichText{text("alpha"), text("3")}}},
			},
		},
	}

	blocks := NewMapper().Blocks(raw)
	require.Len(t, blocks, 1)
	table := blocks[0]
	assert.Equal(t, types.BlockTable, table.Kind)
	assert.True(t, table.HasHeader)
	assert.Equal(t, [][]string{{"name", "count"}, {"alpha", "3"}}, table.Rows)
}

func TestBlocksFlattenIndentedChildren(t *testing.T) {
	raw := []notion.Block{
		{
			Type:             "bulleted_list_item",
			BulletedListItem: payload("parent point"),
			HasChildren:      true,
			Children: []notion.Block{
				{Type: "bulleted_list_item", BulletedListItem: payload("child point")},
			},
		},
	}

	blocks := NewMapper().Blocks(raw)
	require.Len(t, blocks, 2)
	assert.Equal(t, "- parent point", blocks[0].Text)
	assert.Equal(t, "- child point", blocks[1].Text)
}

func TestBlocksUnknownTypesDropped(t *testing.T) {
	raw := []notion.Block{
		{Type: "synced_block"},
		{Type: "paragraph", Paragraph: payload("kept")},
	}

	blocks := NewMapper().Blocks(raw)
	require.Len(t, blocks, 1)
	assert.Equal(t, "kept", blocks[0].Text)
}
