package requirements

import (
	"fmt"

	"github.com/sustainhub/sustainability-hub/internal/platform/httpx"
)

// CompletedClass styles the label of a completed requirement.
const CompletedClass = "line-through text-gray-500"

// ErrMissingID is returned when a toggle names no requirement.
var ErrMissingID = fmt.Errorf("%w: missing requirement id", httpx.ErrValidation)

// Requirement is a sustainability requirement as served by the API.
type Requirement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsCompleted bool   `json:"isCompleted"`
}

// Draft is the payload of an add request.
type Draft struct {
	Name string `json:"name"`
}

// Row is the rendered form of one requirement.
type Row struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Checked     bool   `json:"checked"`
	LabelClass  string `json:"labelClass,omitempty"`
	ToggleLabel string `json:"toggleLabel"`
}

// RowsFor maps records to rows in server order.
func RowsFor(items []Requirement) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		row := Row{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Checked:     item.IsCompleted,
			ToggleLabel: "Toggle requirement " + item.Name,
		}
		if item.IsCompleted {
			row.LabelClass = CompletedClass
		}
		rows = append(rows, row)
	}
	return rows
}
