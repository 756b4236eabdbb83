package tui

import (
	"context"

	"booklet-cli/internal/draft"
	"booklet-cli/internal/reconcile"
	"booklet-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type Options struct {
	PageSize       int
	DisplaceOffset int
	Logger         *zap.Logger
}

// Run opens the booklet editor full screen until the user quits.
func Run(ctx context.Context, backend store.Backend, bookletID int64, opts Options) error {
	applyThemePreference()
	applyColorProfilePreference()

	b, err := backend.GetBooklet(ctx, bookletID)
	if err != nil {
		return err
	}
	keygen := &draft.CounterKeys{}
	items, err := reconcile.Load(ctx, backend, bookletID, keygen)
	if err != nil {
		return err
	}
	m := newEditorModel(ctx, backend, b, items, keygen, opts)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
