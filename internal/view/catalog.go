package view

import (
	"fmt"
	"sort"

	"calibration_console/internal/models"
)

// Option is one selectable radio entry.
type Option struct {
	Header string `json:"header"`
	Value  string `json:"value"`
	Label  string `json:"label"`
}

// OptionList is a rendered catalog.
type OptionList struct {
	Kind string `json:"kind"`
	// RequiresBoardID asks the form to render the board ID text input above the options.
	RequiresBoardID bool     `json:"requires_board_id"`
	Options         []Option `json:"options"`
}

// Contains reports whether value is one of the listed options.
func (l OptionList) Contains(value string) bool {
	for _, o := range l.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// BuildBoardOptions renders a board catalog ordered by tag. Only the first
// entry carries the header label.
func BuildBoardOptions(kind string, c models.BoardCatalog) OptionList {
	tags := make([]string, 0, len(c))
	for tag := range c {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	out := OptionList{
		Kind:            kind,
		RequiresBoardID: kind == models.BoardKindStandard,
		Options:         make([]Option, 0, len(tags)),
	}
	for i, tag := range tags {
		b := c[tag]
		out.Options = append(out.Options, Option{
			Header: headerFor(i, "Board type"),
			Value:  tag,
			Label:  fmt.Sprintf("%s (%d)", b.Name, b.Number),
		})
	}
	return out
}

// BuildReferenceOptions keeps the server order of the reference list.
func BuildReferenceOptions(l models.ReferenceList) OptionList {
	out := OptionList{Kind: "reference", Options: make([]Option, 0, len(l.Valid))}
	for i, ref := range l.Valid {
		out.Options = append(out.Options, Option{
			Header: headerFor(i, "Reference"),
			Value:  ref.Tag,
			Label:  fmt.Sprintf("%s (%s)", ref.BoardType, ref.Time),
		})
	}
	return out
}

func headerFor(i int, label string) string {
	if i == 0 {
		return label
	}
	return ""
}
