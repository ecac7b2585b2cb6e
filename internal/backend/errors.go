package backend

import (
	"errors"
	"fmt"

	"github.com/jackzampolin/storyforge/internal/status"
)

var (
	// ErrStatusUnavailable wraps any failure to obtain a status snapshot.
	ErrStatusUnavailable = errors.New("status unavailable")

	// ErrNoProject means the backend has no story loaded.
	ErrNoProject = errors.New("no project loaded")
)

// UnitError is a failed single-unit generate call.
type UnitError struct {
	Kind    status.Kind
	Unit    int
	Lang    status.Lang
	Message string
}

func (e *UnitError) Error() string {
	switch {
	case e.Kind.IsSheet():
		return fmt.Sprintf("%s failed: %s", e.Kind, e.Message)
	case e.Lang != "":
		return fmt.Sprintf("%s page %d (%s) failed: %s", e.Kind, e.Unit, e.Lang, e.Message)
	default:
		return fmt.Sprintf("%s page %d failed: %s", e.Kind, e.Unit, e.Message)
	}
}
