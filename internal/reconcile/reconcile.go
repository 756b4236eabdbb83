// Package reconcile converges a remote booklet collection to a local target draft.
//
// The preferred path is a single atomic replace. When the remote reports that replace is
// unsupported, the draft is applied item by item in four strictly ordered phases:
// delete, displace, settle, create. Displacing survivors to interim ranks above the 1..N
// window first means no settle write can hit a rank another item still holds, so remotes
// with a unique (booklet, rank) constraint never see a transient duplicate.
//
// A failure in any phase aborts immediately. Nothing is rolled back; callers must reload the
// remote state before offering another attempt.
package reconcile

import (
	"context"
	"fmt"

	"booklet-cli/internal/draft"
	"booklet-cli/internal/model"

	"go.uber.org/zap"
)

type Mode string

const (
	ModeReplace  Mode = "replace"
	ModeFallback Mode = "fallback"
)

type Result struct {
	Mode  Mode         `json:"mode"`
	Items []model.Item `json:"items"`
	// Ops lists the calls issued on the fallback path, in order.
	Ops []Op `json:"ops,omitempty"`
}

type Reconciler struct {
	Remote Remote
	Logger *zap.Logger
	// DisplaceOffset is added to target indexes during the displace phase.
	// Zero means DefaultDisplaceOffset.
	DisplaceOffset int
}

func New(remote Remote, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{Remote: remote, Logger: logger, DisplaceOffset: DefaultDisplaceOffset}
}

func (r *Reconciler) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Plan returns the fallback diff without touching the remote.
func (r *Reconciler) Plan(original, target []draft.Item) Plan {
	return BuildPlan(original, target, r.DisplaceOffset)
}

// Reconcile makes the remote booklet match target. original must be the draft as last
// loaded from the remote.
//
// Calls are issued one at a time and each is awaited before the next; the phase ordering is
// what keeps the remote's uniqueness constraints satisfied, so this must never be batched.
func (r *Reconciler) Reconcile(ctx context.Context, bookletID int64, original, target []draft.Item) (Result, error) {
	if r.Remote == nil {
		return Result{}, fmt.Errorf("reconcile: nil remote")
	}
	if err := draft.Validate(target); err != nil {
		return Result{}, err
	}
	target = draft.ByRank(target)
	log := r.log().With(zap.Int64("booklet", bookletID))

	items, err := r.Remote.ReplaceItems(ctx, bookletID, draft.Specs(target))
	if err == nil {
		log.Debug("booklet replaced atomically", zap.Int("items", len(items)))
		return Result{Mode: ModeReplace, Items: items}, nil
	}
	if !IsUnsupported(err) {
		log.Warn("atomic replace failed", zap.Error(err))
		return Result{}, &PhaseError{Phase: PhaseReplace, Err: err}
	}

	// The remote has no bulk replace; do not probe again for the rest of this call.
	plan := r.Plan(original, target)
	log.Info("atomic replace unsupported; applying item diff",
		zap.Int("deletes", len(plan.Deletes)),
		zap.Int("updates", len(plan.Displaces)),
		zap.Int("creates", len(plan.Creates)),
	)

	applied := make([]Op, 0, plan.Len())
	for _, ph := range plan.Phases() {
		if len(ph.Ops) == 0 {
			continue
		}
		log.Debug("phase start", zap.String("phase", string(ph.Phase)), zap.Int("ops", len(ph.Ops)))
		for i := range ph.Ops {
			op := ph.Ops[i]
			if err := r.apply(ctx, bookletID, op); err != nil {
				log.Warn("phase aborted",
					zap.String("phase", string(ph.Phase)),
					zap.Int64("version", op.VersionID),
					zap.Int64("remote_id", op.RemoteID),
					zap.Int("rank", op.Rank),
					zap.Int("applied", len(applied)),
					zap.Error(err),
				)
				return Result{Mode: ModeFallback, Ops: applied}, &PhaseError{
					Phase:     ph.Phase,
					Op:        &op,
					Completed: len(applied),
					Err:       err,
				}
			}
			applied = append(applied, op)
		}
		log.Debug("phase done", zap.String("phase", string(ph.Phase)))
	}

	items, err = r.Remote.ListItems(ctx, bookletID)
	if err != nil {
		return Result{Mode: ModeFallback, Ops: applied}, &PhaseError{Phase: PhaseReload, Completed: len(applied), Err: err}
	}
	return Result{Mode: ModeFallback, Items: items, Ops: applied}, nil
}

func (r *Reconciler) apply(ctx context.Context, bookletID int64, op Op) error {
	switch op.Kind {
	case OpDelete:
		return r.Remote.DeleteItem(ctx, bookletID, op.RemoteID)
	case OpUpdate:
		rank := op.Rank
		_, err := r.Remote.UpdateItem(ctx, bookletID, op.RemoteID, model.ItemPatch{Rank: &rank})
		return err
	case OpCreate:
		_, err := r.Remote.CreateItem(ctx, bookletID, model.ItemSpec{VersionID: op.VersionID, Rank: op.Rank})
		return err
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
}
