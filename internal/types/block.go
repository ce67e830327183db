package types

// BlockKind discriminates the content block union.
type BlockKind string

// Content block kinds. Paragraphs, headings, list items, to-dos, quotes and
// callouts are all normalized into text blocks with conventional markdown
// prefixes; the remaining kinds carry structured payloads.
const (
	BlockText     BlockKind = "text"
	BlockCode     BlockKind = "code"
	BlockEquation BlockKind = "equation"
	BlockTable    BlockKind = "table"
	BlockToggle   BlockKind = "toggle"
)

// Block is one unit of task body content. Exactly the fields relevant to
// Kind are populated; everything else stays zero.
type Block struct {
	Kind BlockKind `json:"kind"`

	// text, toggle (summary line), code (source text)
	Text string `json:"text,omitempty"`

	// code
	Language string `json:"language,omitempty"`

	// equation
	Expression string `json:"expression,omitempty"`

	// table
	Rows      [][]string `json:"rows,omitempty"`
	HasHeader bool       `json:"has_header,omitempty"`

	// toggle: ordered child blocks, recursive
	Children []Block `json:"children,omitempty"`
}

// PlainText flattens a block (and any toggle children) into plain lines for
// inline display. Tables collapse to pipe-separated rows, equations to their
// expression source.
func (b Block) PlainText() []string {
	switch b.Kind {
	case BlockText:
		if b.Text == "" {
			return nil
		}
		return []string{b.Text}
	case BlockCode:
		lines := []string{"```" + b.Language}
		if b.Text != "" {
			lines = append(lines, b.Text)
		}
		return append(lines, "```")
	case BlockEquation:
		if b.Expression == "" {
			return nil
		}
		return []string{"$" + b.Expression + "$"}
	case BlockTable:
		var lines []string
		for _, row := range b.Rows {
			line := "|"
			for _, cell := range row {
				line += " " + cell + " |"
			}
			lines = append(lines, line)
		}
		return lines
	case BlockToggle:
		lines := []string{}
		if b.Text != "" {
			lines = append(lines, b.Text)
		}
		for _, child := range b.Children {
			for _, l := range child.PlainText() {
				lines = append(lines, "  "+l)
			}
		}
		return lines
	}
	return nil
}

// FlattenBlocks joins the plain text of a block sequence.
func FlattenBlocks(blocks []Block) []string {
	var lines []string
	for _, b := range blocks {
		lines = append(lines, b.PlainText()...)
	}
	return lines
}
