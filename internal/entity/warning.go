package entity

import "fmt"

// Warning is a non-fatal extraction problem attached to a processing result.
// Row is the 1-based table row it refers to, or 0 for document level warnings.
type Warning struct {
	Field   string `json:"field,omitempty"`
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.Row > 0 && w.Field != "":
		return fmt.Sprintf("row %d: %s: %s", w.Row, w.Field, w.Message)
	case w.Row > 0:
		return fmt.Sprintf("row %d: %s", w.Row, w.Message)
	case w.Field != "":
		return fmt.Sprintf("%s: %s", w.Field, w.Message)
	default:
		return w.Message
	}
}
