// Package ops implements the clinote operations shared by the CLI, the MCP
// server and the HTTP API. Each operation takes an XxxInput and returns an
// XxxOutput or a *errors.NoteError.
package ops

import (
	"strings"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// Pagination limits for history listings.
const (
	DefaultListLimit = 30
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// ResolveKind parses a kind argument ("admission", "evolution" or the
// Spanish wire values). Empty means the workbench's active kind.
func ResolveKind(wb *workbench.Workbench, kind string) (record.Kind, error) {
	if strings.TrimSpace(kind) == "" {
		return wb.Kind(), nil
	}
	k, ok := record.ParseKind(kind)
	if !ok {
		return "", errors.NewInvalidRequest("kind must be admission or evolution")
	}
	return k, nil
}
