package reconcile

import (
	"context"
	"errors"
	"fmt"

	"booklet-cli/internal/model"
)

// ErrUnsupported marks a remote that does not implement an operation (typically the atomic
// replace). Remotes wrap it so that IsUnsupported sees through their own error types.
var ErrUnsupported = errors.New("operation not supported by remote")

func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

// Remote is the ordered booklet collection being converged.
type Remote interface {
	ListItems(ctx context.Context, bookletID int64) ([]model.Item, error)
	CreateItem(ctx context.Context, bookletID int64, spec model.ItemSpec) (model.Item, error)
	UpdateItem(ctx context.Context, bookletID, itemID int64, patch model.ItemPatch) (model.Item, error)
	DeleteItem(ctx context.Context, bookletID, itemID int64) error
	// ReplaceItems atomically replaces the collection. Remotes without bulk support return
	// an error wrapping ErrUnsupported.
	ReplaceItems(ctx context.Context, bookletID int64, specs []model.ItemSpec) ([]model.Item, error)
}

// Searcher is the paginated candidate source feeding the picker.
type Searcher interface {
	SearchCandidates(ctx context.Context, filter model.SearchFilter, page model.Page) (model.SearchResult, error)
}

type Phase string

const (
	PhaseReplace  Phase = "replace"
	PhaseDelete   Phase = "delete"
	PhaseDisplace Phase = "displace"
	PhaseSettle   Phase = "settle"
	PhaseCreate   Phase = "create"
	PhaseReload   Phase = "reload"
)

// PhaseError reports the first failed call. Phases before Phase completed; nothing after it
// was attempted and nothing was undone.
type PhaseError struct {
	Phase     Phase
	Op        *Op
	Completed int // operations applied before the failure
	Err       error
}

func (e *PhaseError) Error() string {
	if e.Op != nil {
		return fmt.Sprintf("reconcile %s phase failed on version %d: %v", e.Phase, e.Op.VersionID, e.Err)
	}
	return fmt.Sprintf("reconcile %s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Partial reports whether the remote may have been left between states.
func (e *PhaseError) Partial() bool { return e.Completed > 0 }
