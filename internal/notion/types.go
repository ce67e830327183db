package notion

import (
	"strings"
	"time"
)

// Record is one page row returned by a database query. Properties are keyed
// by the workspace's display names, so the normalizer maps them through a
// configurable property map.
type Record struct {
	ID             string              `json:"id"`
	CreatedTime    time.Time           `json:"created_time"`
	LastEditedTime *time.Time          `json:"last_edited_time,omitempty"`
	URL            string              `json:"url,omitempty"`
	Properties     map[string]Property `json:"properties"`
}

// Property is the typed payload of one page property. Only the field named
// by Type is populated.
type Property struct {
	ID          string        `json:"id,omitempty"`
	Type        string        `json:"type"`
	Title       RichText      `json:"title,omitempty"`
	RichText    RichText      `json:"rich_text,omitempty"`
	Select      *SelectValue  `json:"select,omitempty"`
	Status      *SelectValue  `json:"status,omitempty"`
	MultiSelect []SelectValue `json:"multi_select,omitempty"`
	Date        *DateValue    `json:"date,omitempty"`
	Number      *float64      `json:"number,omitempty"`
	UniqueID    *UniqueID     `json:"unique_id,omitempty"`
	Relation    []Ref         `json:"relation,omitempty"`
	Formula     *FormulaValue `json:"formula,omitempty"`
	Files       []FileValue   `json:"files,omitempty"`
}

// RichText is the API's styled text array. Only plain text is consumed.
type RichText []RichTextSpan

// RichTextSpan is one run of styled text.
type RichTextSpan struct {
	Type      string `json:"type,omitempty"`
	PlainText string `json:"plain_text"`
	Href      string `json:"href,omitempty"`
}

// Plain joins the spans into a single string.
func (rt RichText) Plain() string {
	if len(rt) == 0 {
		return ""
	}
	var b strings.Builder
	for _, span := range rt {
		b.WriteString(span.PlainText)
	}
	return b.String()
}

// SelectValue is a select/status/multi-select option.
type SelectValue struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// DateValue is a date property payload. Start is ISO 8601, date-only or
// full timestamp.
type DateValue struct {
	Start    string `json:"start"`
	End      string `json:"end,omitempty"`
	TimeZone string `json:"time_zone,omitempty"`
}

// UniqueID is the auto-incremented display id property.
type UniqueID struct {
	Number int    `json:"number"`
	Prefix string `json:"prefix,omitempty"`
}

// Ref is a bare object reference (relations, users).
type Ref struct {
	ID string `json:"id"`
}

// FormulaValue is a computed property result.
type FormulaValue struct {
	Type    string   `json:"type"`
	String  *string  `json:"string,omitempty"`
	Number  *float64 `json:"number,omitempty"`
	Boolean *bool    `json:"boolean,omitempty"`
}

// FileValue is one entry of a files property. Hosted files live under File,
// links under External.
type FileValue struct {
	Name     string    `json:"name"`
	Type     string    `json:"type,omitempty"`
	File     *FileLink `json:"file,omitempty"`
	External *FileLink `json:"external,omitempty"`
}

// FileLink carries the download URL.
type FileLink struct {
	URL        string     `json:"url"`
	ExpiryTime *time.Time `json:"expiry_time,omitempty"`
}

// SourceURL returns the file's download URL regardless of hosting type.
func (f FileValue) SourceURL() string {
	if f.File != nil {
		return f.File.URL
	}
	if f.External != nil {
		return f.External.URL
	}
	return ""
}

// Block is one raw content block. Only the payload matching Type is set.
// Children is filled by BlockTree when the block has nested content.
type Block struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children,omitempty"`

	Paragraph        *TextPayload     `json:"paragraph,omitempty"`
	Heading1         *TextPayload     `json:"heading_1,omitempty"`
	Heading2         *TextPayload     `json:"heading_2,omitempty"`
	Heading3         *TextPayload     `json:"heading_3,omitempty"`
	BulletedListItem *TextPayload     `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextPayload     `json:"numbered_list_item,omitempty"`
	Quote            *TextPayload     `json:"quote,omitempty"`
	Callout          *TextPayload     `json:"callout,omitempty"`
	Toggle           *TextPayload     `json:"toggle,omitempty"`
	ToDo             *ToDoPayload     `json:"to_do,omitempty"`
	Code             *CodePayload     `json:"code,omitempty"`
	Equation         *EquationPayload `json:"equation,omitempty"`
	Table            *TablePayload    `json:"table,omitempty"`
	TableRow         *TableRowPayload `json:"table_row,omitempty"`

	Children []Block `json:"children,omitempty"`
}

// TextPayload is the common rich-text payload shared by paragraph, heading,
// list item, quote, callout and toggle blocks.
type TextPayload struct {
	RichText RichText `json:"rich_text"`
}

// ToDoPayload is a checkbox line.
type ToDoPayload struct {
	RichText RichText `json:"rich_text"`
	Checked  bool     `json:"checked"`
}

// CodePayload is a fenced code block.
type CodePayload struct {
	RichText RichText `json:"rich_text"`
	Language string   `json:"language,omitempty"`
}

// EquationPayload is a KaTeX expression block.
type EquationPayload struct {
	Expression string `json:"expression"`
}

// TablePayload is the table container; row contents arrive as table_row
// children.
type TablePayload struct {
	TableWidth      int  `json:"table_width"`
	HasColumnHeader bool `json:"has_column_header"`
	HasRowHeader    bool `json:"has_row_header"`
}

// TableRowPayload is one table row: a cell list of rich-text arrays.
type TableRowPayload struct {
	Cells []RichText `json:"cells"`
}

// Comment is one discussion entry on a page.
type Comment struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"created_time"`
	CreatedBy   Ref       `json:"created_by"`
	RichText    RichText  `json:"rich_text"`
}

// Database is the schema object returned for the configured database.
type Database struct {
	ID         string                    `json:"id"`
	Title      RichText                  `json:"title,omitempty"`
	Properties map[string]SchemaProperty `json:"properties"`
}

// SchemaProperty describes one column of the database schema.
type SchemaProperty struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// listResponse is the shared pagination envelope.
type listResponse[T any] struct {
	Results    []T     `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}
