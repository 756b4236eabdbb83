package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"booklet-cli/internal/draft"
	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"
	"booklet-cli/internal/store"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

type editorMode int

const (
	modeEdit editorMode = iota
	modePick
)

type savedMsg struct {
	res reconcile.Result
	err error
	// reloaded is the remote state read back after a failed save.
	reloaded  []draft.Item
	reloadErr error
}

type loadedMsg struct {
	items []draft.Item
	err   error
}

type editorModel struct {
	ctx     context.Context
	backend store.Backend
	rec     *reconcile.Reconciler
	log     *zap.Logger
	booklet model.Booklet
	keygen  draft.KeyGen

	// original is the draft as last read from the remote; items is the working copy.
	original []draft.Item
	items    []draft.Item
	cursor   int

	mode   editorMode
	picker pickerModel

	busy        bool
	needsReload bool
	confirmQuit bool
	status      string
	err         error

	keys     editorKeyMap
	help     help.Model
	showHelp bool
	width    int
	height   int
}

func newEditorModel(ctx context.Context, backend store.Backend, booklet model.Booklet, items []draft.Item, keygen draft.KeyGen, opts Options) editorModel {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rec := reconcile.New(backend, log)
	if opts.DisplaceOffset > 0 {
		rec.DisplaceOffset = opts.DisplaceOffset
	}
	return editorModel{
		ctx:      ctx,
		backend:  backend,
		rec:      rec,
		log:      log,
		booklet:  booklet,
		keygen:   keygen,
		original: items,
		items:    items,
		picker:   newPickerModel(ctx, backend, opts.PageSize),
		keys:     newEditorKeyMap(),
		help:     help.New(),
	}
}

func (m editorModel) Init() tea.Cmd { return nil }

// dirty reports whether the working copy differs from what was last loaded.
func (m editorModel) dirty() bool {
	if len(m.items) != len(m.original) {
		return true
	}
	for i := range m.items {
		if m.items[i].VersionID != m.original[i].VersionID {
			return true
		}
	}
	return false
}

func (m *editorModel) clampCursor() {
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m editorModel) currentKey() string {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return ""
	}
	return m.items[m.cursor].LocalKey
}

func metaByVersion(items []draft.Item) map[int64]draft.Meta {
	out := make(map[int64]draft.Meta, len(items))
	for _, it := range items {
		out[it.VersionID] = it.Meta
	}
	return out
}

func (m editorModel) saveCmd() tea.Cmd {
	ctx, rec, backend, id := m.ctx, m.rec, m.backend, m.booklet.ID
	original, target, keygen := m.original, m.items, m.keygen
	return func() tea.Msg {
		res, err := rec.Reconcile(ctx, id, original, target)
		if err == nil {
			return savedMsg{res: res}
		}
		// The remote may be half-applied; read it back so the next attempt starts from truth.
		reloaded, rerr := reconcile.Load(ctx, backend, id, keygen)
		return savedMsg{res: res, err: err, reloaded: reloaded, reloadErr: rerr}
	}
}

func (m editorModel) reloadCmd() tea.Cmd {
	ctx, backend, id, keygen := m.ctx, m.backend, m.booklet.ID, m.keygen
	return func() tea.Msg {
		items, err := reconcile.Load(ctx, backend, id, keygen)
		return loadedMsg{items: items, err: err}
	}
}

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.picker.width, m.picker.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.picker.help.Width = msg.Width
		return m, nil

	case pageLoadedMsg:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case savedMsg:
		return m.handleSaved(msg), nil

	case loadedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			m.status = "reload failed"
			return m, nil
		}
		m.original, m.items = msg.items, msg.items
		m.needsReload = false
		m.err = nil
		m.status = "reloaded"
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		if m.mode == modePick {
			return m.updatePicker(msg)
		}
		return m.updateEdit(msg)
	}
	return m, nil
}

func (m editorModel) handleSaved(msg savedMsg) editorModel {
	m.busy = false
	if msg.err == nil {
		items := draft.FromRemote(msg.res.Items, metaByVersion(m.items), m.keygen)
		m.original, m.items = items, items
		m.err = nil
		m.status = fmt.Sprintf("saved (%s", msg.res.Mode)
		if n := len(msg.res.Ops); n > 0 {
			m.status += fmt.Sprintf(", %d calls", n)
		}
		m.status += ")"
		m.clampCursor()
		return m
	}

	m.err = msg.err
	var pe *reconcile.PhaseError
	if errors.As(msg.err, &pe) && pe.Partial() {
		m.status = fmt.Sprintf("save failed after %d of the changes were applied", pe.Completed)
	} else {
		m.status = "save failed"
	}
	if msg.reloadErr != nil {
		m.needsReload = true
		m.status += "; reload (r) before saving again"
		return m
	}
	m.original, m.items = msg.reloaded, msg.reloaded
	m.status += "; reloaded from remote"
	m.clampCursor()
	return m
}

func (m editorModel) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	switch m.picker.outcome {
	case pickerConfirmed:
		res := draft.MergeSelected(m.items, m.picker.sel.Values(), m.keygen)
		m.items = res.Items
		m.mode = modeEdit
		m.status = fmt.Sprintf("added %d question(s)", res.Added)
		return m, nil
	case pickerCancelled:
		m.mode = modeEdit
		m.status = ""
		return m, nil
	}
	return m, cmd
}

func (m editorModel) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		if m.dirty() && !m.confirmQuit {
			m.confirmQuit = true
			m.status = "unsaved changes; press q again to discard"
			return m, nil
		}
		return m, tea.Quit
	}
	m.confirmQuit = false
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.MoveUp), key.Matches(msg, m.keys.MoveDown):
		delta := -1
		if key.Matches(msg, m.keys.MoveDown) {
			delta = 1
		}
		k := m.currentKey()
		m.items = draft.MoveBy(m.items, k, delta)
		if i := draft.IndexOf(m.items, k); i >= 0 {
			m.cursor = i
		}
	case key.Matches(msg, m.keys.Remove):
		if k := m.currentKey(); k != "" {
			m.items = draft.RemoveByKey(m.items, k)
			m.clampCursor()
		}
	case key.Matches(msg, m.keys.Add):
		m.mode = modePick
		return m, m.picker.open(m.items)
	case key.Matches(msg, m.keys.Save):
		if m.needsReload {
			m.status = "remote state unknown; reload (r) first"
			return m, nil
		}
		m.busy = true
		m.status = "saving…"
		return m, m.saveCmd()
	case key.Matches(msg, m.keys.Reload):
		m.busy = true
		m.status = "reloading…"
		return m, m.reloadCmd()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	}
	return m, nil
}

func (m editorModel) View() string {
	if m.mode == modePick {
		return m.picker.View()
	}
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	title := fmt.Sprintf("Booklet #%d · %s", m.booklet.ID, m.booklet.Title)
	if m.dirty() {
		title += " *"
	}
	b.WriteString(styleTitle().Render(title))
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString(styleMuted().Render("empty booklet (a to add questions)"))
		b.WriteString("\n")
	}
	listH := m.height - 6
	start, end := visibleWindow(len(m.items), m.cursor, listH)
	for i := start; i < end; i++ {
		it := m.items[i]
		line := fmt.Sprintf("%3d. %s", it.Rank, candidateLine(it.Candidate()))
		if !it.Persisted() {
			line += " " + styleMuted().Render("(new)")
		}
		b.WriteString(renderRow(width, line, i == m.cursor))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(styleError().Render(m.status + ": " + m.err.Error()))
	} else if m.status != "" {
		b.WriteString(styleMuted().Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}
