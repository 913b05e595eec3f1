package bookstore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a Book or Chapter addressed by key does not
// exist.
var ErrNotFound = errors.New("bookstore: not found")

// ErrTitleExists is returned by [Store.CreateBook] when a book with the
// same title already exists (§3's "title unique").
var ErrTitleExists = errors.New("bookstore: title already exists")

// ErrInvalidTemplate is returned when a prompt template is written without
// the required [EntitiesPlaceholder] token.
type ErrInvalidTemplate struct {
	Reason string
}

func (e *ErrInvalidTemplate) Error() string {
	return fmt.Sprintf("bookstore: invalid prompt template: %s", e.Reason)
}

// ValidatePromptTemplate checks that template contains the required
// {{ENTITIES_JSON}} placeholder (§4.3's write-time validation). An empty
// template is valid — it clears the override.
func ValidatePromptTemplate(template string) error {
	if template == "" {
		return nil
	}
	if !strings.Contains(template, EntitiesPlaceholder) {
		return &ErrInvalidTemplate{Reason: "missing required " + EntitiesPlaceholder + " placeholder"}
	}
	return nil
}
