package tui

import (
	"context"
	"fmt"
	"strings"

	"booklet-cli/internal/draft"
	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type pickerOutcome int

const (
	pickerActive pickerOutcome = iota
	pickerConfirmed
	pickerCancelled
)

// pageLoadedMsg carries one search page. seq lets the picker drop responses to requests
// it has since superseded.
type pageLoadedMsg struct {
	seq  int
	page model.Page
	res  model.SearchResult
	err  error
}

// pickerModel is the "add questions" dialog. The selection survives paging and filter
// changes while the dialog is open and is rebuilt from the draft every time it opens.
type pickerModel struct {
	ctx      context.Context
	search   reconcile.Searcher
	pageSize int

	filter  model.SearchFilter
	page    model.Page
	result  model.SearchResult
	seq     int
	loading bool
	err     error
	cursor  int

	sel          *draft.Selection
	query        textinput.Model
	editingQuery bool
	outcome      pickerOutcome

	keys   pickerKeyMap
	help   help.Model
	width  int
	height int
}

func newPickerModel(ctx context.Context, search reconcile.Searcher, pageSize int) pickerModel {
	if pageSize < 1 {
		pageSize = 10
	}
	q := textinput.New()
	q.Placeholder = "search title, code or stem"
	q.CharLimit = 120
	q.Width = 40
	return pickerModel{
		ctx:      ctx,
		search:   search,
		pageSize: pageSize,
		page:     model.Page{Number: 1, Size: pageSize},
		sel:      draft.NewSelection(nil),
		query:    q,
		keys:     newPickerKeyMap(),
		help:     help.New(),
	}
}

// open starts a fresh picking session seeded from the live draft.
func (p *pickerModel) open(seed []draft.Item) tea.Cmd {
	p.sel.Reset(seed)
	p.outcome = pickerActive
	p.editingQuery = false
	p.query.Blur()
	p.cursor = 0
	p.err = nil
	p.result = model.SearchResult{}
	p.page = model.Page{Number: 1, Size: p.pageSize}
	return p.fetch()
}

func (p *pickerModel) fetch() tea.Cmd {
	p.seq++
	p.loading = true
	seq, ctx, search, filter, page := p.seq, p.ctx, p.search, p.filter, p.page
	return func() tea.Msg {
		res, err := search.SearchCandidates(ctx, filter, page)
		return pageLoadedMsg{seq: seq, page: page, res: res, err: err}
	}
}

func (p pickerModel) current() (model.Candidate, bool) {
	if p.cursor < 0 || p.cursor >= len(p.result.Results) {
		return model.Candidate{}, false
	}
	return p.result.Results[p.cursor], true
}

func (p pickerModel) Update(msg tea.Msg) (pickerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case pageLoadedMsg:
		if msg.seq != p.seq {
			return p, nil
		}
		p.loading = false
		p.err = msg.err
		if msg.err == nil {
			p.result = msg.res
			p.page = msg.page
		}
		if p.cursor >= len(p.result.Results) {
			p.cursor = max(0, len(p.result.Results)-1)
		}
		return p, nil

	case tea.KeyMsg:
		if p.editingQuery {
			return p.updateQuery(msg)
		}
		switch {
		case key.Matches(msg, p.keys.Cancel):
			p.outcome = pickerCancelled
		case key.Matches(msg, p.keys.Confirm):
			p.outcome = pickerConfirmed
		case key.Matches(msg, p.keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
		case key.Matches(msg, p.keys.Down):
			if p.cursor < len(p.result.Results)-1 {
				p.cursor++
			}
		case key.Matches(msg, p.keys.Toggle):
			if c, ok := p.current(); ok {
				p.sel.Toggle(c.VersionID, c)
			}
		case key.Matches(msg, p.keys.TogglePage):
			p.sel.ToggleAllOnPage(p.result.Results)
		case key.Matches(msg, p.keys.NextPage):
			if p.result.HasNext && !p.loading {
				p.page.Number++
				p.cursor = 0
				return p, p.fetch()
			}
		case key.Matches(msg, p.keys.PrevPage):
			if p.result.HasPrevious && p.page.Number > 1 && !p.loading {
				p.page.Number--
				p.cursor = 0
				return p, p.fetch()
			}
		case key.Matches(msg, p.keys.Search):
			p.editingQuery = true
			p.query.SetValue(p.filter.Query)
			p.query.CursorEnd()
			return p, p.query.Focus()
		}
		return p, nil
	}
	return p, nil
}

func (p pickerModel) updateQuery(msg tea.KeyMsg) (pickerModel, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		p.editingQuery = false
		p.query.Blur()
		p.filter.Query = strings.TrimSpace(p.query.Value())
		p.page.Number = 1
		p.cursor = 0
		return p, p.fetch()
	case tea.KeyEsc:
		p.editingQuery = false
		p.query.Blur()
		return p, nil
	}
	var cmd tea.Cmd
	p.query, cmd = p.query.Update(msg)
	return p, cmd
}

func (p pickerModel) View() string {
	var b strings.Builder
	b.WriteString(styleTitle().Render("Add questions"))
	b.WriteString("\n")

	if p.editingQuery {
		b.WriteString("/ " + p.query.View())
	} else if p.filter.Query != "" {
		b.WriteString(styleMuted().Render("filter: " + p.filter.Query))
	} else {
		b.WriteString(styleMuted().Render("no filter (/ to search)"))
	}
	b.WriteString("\n\n")

	width := p.width
	if width <= 0 {
		width = 80
	}
	rows := p.result.Results
	switch {
	case p.err != nil:
		b.WriteString(styleError().Render("search failed: " + p.err.Error()))
		b.WriteString("\n")
	case p.loading && len(rows) == 0:
		b.WriteString(styleMuted().Render("loading…"))
		b.WriteString("\n")
	case len(rows) == 0:
		b.WriteString(styleMuted().Render("no matching questions"))
		b.WriteString("\n")
	}
	for i, c := range rows {
		mark := "[ ]"
		if p.sel.Has(c.VersionID) {
			mark = styleCheck().Render("[x]")
		}
		b.WriteString(renderRow(width, mark+" "+candidateLine(c), i == p.cursor))
		b.WriteString("\n")
	}

	pageState := "   "
	if p.sel.AllOnPageSelected(rows) {
		pageState = "all"
	}
	footer := fmt.Sprintf("page %d · %d total · %d selected · page: %s",
		p.page.Number, p.result.Total, p.sel.Len(), pageState)
	b.WriteString("\n")
	b.WriteString(styleMuted().Render(footer))
	b.WriteString("\n")
	b.WriteString(p.help.View(p.keys))
	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}

func candidateLine(c model.Candidate) string {
	parts := []string{}
	if c.Code != "" {
		parts = append(parts, c.Code)
	}
	title := c.Title
	if title == "" {
		title = fmt.Sprintf("version %d", c.VersionID)
	}
	parts = append(parts, truncateInline(title, 60))
	meta := []string{}
	if c.Subject != "" {
		meta = append(meta, c.Subject)
	}
	if c.Difficulty != "" {
		meta = append(meta, string(c.Difficulty))
	}
	line := strings.Join(parts, "  ")
	if len(meta) > 0 {
		line += "  " + styleMuted().Render(strings.Join(meta, " · "))
	}
	return line
}
