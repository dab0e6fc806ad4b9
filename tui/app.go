package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"blindmark/history"
	"blindmark/watermark"
	"blindmark/workflow"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Downloader saves processed images locally
type Downloader interface {
	Download(ctx context.Context, ref, dir string, overwrite bool) (*watermark.DownloadResult, error)
}

// HistoryStore records successful embeds
type HistoryStore interface {
	Add(ctx context.Context, r history.Record) (history.Record, error)
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// Options configures the app beyond its session. Nil Downloader or History
// disable the matching feature.
type Options struct {
	Downloader  Downloader
	History     HistoryStore
	DownloadDir string
	Overwrite   bool
	Logger      *slog.Logger
}

const historyLimit = 50

// Input slots
const (
	inputEmbedImage = iota
	inputEmbedText
	inputExtractImage
	inputExtractLength
	inputCount
)

var tabLabels = map[string]string{
	workflow.NavEmbed:   "F1 Embed",
	workflow.NavExtract: "F2 Extract",
	workflow.NavHistory: "F3 History",
}

var tabTargets = map[string]string{
	workflow.NavEmbed:   workflow.PanelEmbed,
	workflow.NavExtract: workflow.PanelExtract,
	workflow.NavHistory: workflow.PanelHistory,
}

// Model is the Bubble Tea model for the blindmark UI
type Model struct {
	session *workflow.Session
	opts    Options
	logger  *slog.Logger

	inputs  [inputCount]textinput.Model
	focus   int
	spinner spinner.Model
	history viewport.Model

	records    []history.Record
	historyErr string

	notice    string
	noticeErr bool

	width    int
	height   int
	quitting bool

	ctx    context.Context
	cancel context.CancelFunc
}

type embedDoneMsg struct {
	pending *workflow.Pending[*watermark.EmbedResponse]
	out     workflow.Outcome[*watermark.EmbedResponse]
}

type extractDoneMsg struct {
	pending *workflow.Pending[*watermark.ExtractResponse]
	out     workflow.Outcome[*watermark.ExtractResponse]
}

type downloadDoneMsg struct {
	result *watermark.DownloadResult
	err    error
}

type historyLoadedMsg struct {
	records []history.Record
	err     error
}

type recordedMsg struct {
	record history.Record
	err    error
}

// NewModel creates the UI around session
func NewModel(session *workflow.Session, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var inputs [inputCount]textinput.Model
	placeholders := [inputCount]string{
		"./photo.png",
		"text to hide",
		"./downloads/processed.png",
		"watermark length",
	}
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 1024
		ti.Width = 60
		inputs[i] = ti
	}
	inputs[inputExtractLength].CharLimit = 12
	inputs[inputExtractLength].SetValue(session.Extract.Input().Length)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorAccent)

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		session: session,
		opts:    opts,
		logger:  logger,
		inputs:  inputs,
		spinner: s,
		history: viewport.New(76, 12),
		width:   80,
		height:  24,
		ctx:     ctx,
		cancel:  cancel,
	}
	m.setFocus(m.firstInput())
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.history.Width = max(msg.Width-4, 20)
		m.history.Height = max(msg.Height-14, 5)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.session.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case embedDoneMsg:
		if !m.session.FinishEmbed(msg.pending, msg.out) {
			return m, nil
		}
		if m.session.Embed.State().Phase != workflow.Succeeded {
			return m, nil
		}
		m.inputs[inputExtractLength].SetValue(m.session.Extract.Input().Length)
		return m, m.record(msg.out.Value)

	case extractDoneMsg:
		m.session.FinishExtract(msg.pending, msg.out)
		return m, nil

	case downloadDoneMsg:
		if msg.err != nil {
			m.setNotice(msg.err.Error(), true)
			return m, nil
		}
		m.setNotice(fmt.Sprintf("Saved %s (%s)", msg.result.Path, watermark.FormatSize(msg.result.Bytes)), false)
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			m.historyErr = msg.err.Error()
			return m, nil
		}
		m.historyErr = ""
		m.records = msg.records
		m.history.SetContent(renderRecords(m.records))
		return m, nil

	case recordedMsg:
		if msg.err != nil {
			m.logger.Warn("record embed", "error", msg.err)
			return m, nil
		}
		m.records = append([]history.Record{msg.record}, m.records...)
		if len(m.records) > historyLimit {
			m.records = m.records[:historyLimit]
		}
		m.history.SetContent(renderRecords(m.records))
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		m.cancel()
		return m, tea.Quit
	case "f1":
		return m.switchTab(workflow.NavEmbed)
	case "f2":
		return m.switchTab(workflow.NavExtract)
	case "f3":
		return m.switchTab(workflow.NavHistory)
	case "ctrl+t":
		return m.switchTab(m.nextControl())
	case "tab":
		return m, m.cycleFocus(1)
	case "shift+tab":
		return m, m.cycleFocus(-1)
	case "enter":
		switch m.session.Tabs.Current() {
		case workflow.PanelEmbed:
			return m.triggerEmbed()
		case workflow.PanelExtract:
			return m.triggerExtract()
		}
		return m, nil
	case "ctrl+s":
		return m.download()
	}

	return m.updateFocused(msg)
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.session.Tabs.Current() == workflow.PanelHistory {
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}
	if m.focus >= 0 {
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	}
	return m, cmd
}

func (m Model) switchTab(control string) (tea.Model, tea.Cmd) {
	m.session.Tabs.Switch(control, tabTargets[control])
	cmd := m.setFocus(m.firstInput())
	if control == workflow.NavHistory {
		return m, m.loadHistory()
	}
	return m, cmd
}

func (m Model) nextControl() string {
	controls := m.session.Tabs.Controls()
	for i, c := range controls {
		if m.session.Tabs.Active(c) {
			return controls[(i+1)%len(controls)]
		}
	}
	return controls[0]
}

func panelInputs(panel string) []int {
	switch panel {
	case workflow.PanelEmbed:
		return []int{inputEmbedImage, inputEmbedText}
	case workflow.PanelExtract:
		return []int{inputExtractImage, inputExtractLength}
	}
	return nil
}

func (m Model) firstInput() int {
	slots := panelInputs(m.session.Tabs.Current())
	if len(slots) == 0 {
		return -1
	}
	return slots[0]
}

func (m *Model) setFocus(slot int) tea.Cmd {
	m.focus = slot
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == slot {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) cycleFocus(delta int) tea.Cmd {
	slots := panelInputs(m.session.Tabs.Current())
	if len(slots) == 0 {
		return nil
	}
	pos := 0
	for i, s := range slots {
		if s == m.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(slots)) % len(slots)
	return m.setFocus(slots[pos])
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// cleanPath strips whitespace and the quotes terminals add to dropped paths
func cleanPath(v string) string {
	return strings.Trim(strings.TrimSpace(v), `"'`)
}

func (m Model) triggerEmbed() (tea.Model, tea.Cmd) {
	m.session.Embed.SetImagePath(cleanPath(m.inputs[inputEmbedImage].Value()))
	m.session.Embed.SetText(m.inputs[inputEmbedText].Value())

	p, err := m.session.BeginEmbed()
	if err != nil || p == nil {
		return m, nil
	}
	m.setNotice("", false)

	ctx := m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return embedDoneMsg{pending: p, out: p.Do(ctx)}
	})
}

func (m Model) triggerExtract() (tea.Model, tea.Cmd) {
	m.session.Extract.SetImagePath(cleanPath(m.inputs[inputExtractImage].Value()))
	m.session.Extract.SetLength(m.inputs[inputExtractLength].Value())

	p, err := m.session.BeginExtract()
	if err != nil || p == nil {
		return m, nil
	}
	m.setNotice("", false)

	ctx := m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return extractDoneMsg{pending: p, out: p.Do(ctx)}
	})
}

func (m Model) download() (tea.Model, tea.Cmd) {
	surf := m.session.Surface()
	if !surf.EmbedResultVisible || m.opts.Downloader == nil {
		return m, nil
	}

	d, ctx := m.opts.Downloader, m.ctx
	ref, dir, overwrite := surf.Embed.Locator, m.opts.DownloadDir, m.opts.Overwrite
	m.setNotice("Downloading "+surf.Embed.DownloadName+"...", false)
	return m, func() tea.Msg {
		r, err := d.Download(ctx, ref, dir, overwrite)
		return downloadDoneMsg{result: r, err: err}
	}
}

func (m Model) loadHistory() tea.Cmd {
	if m.opts.History == nil {
		return nil
	}
	store, ctx := m.opts.History, m.ctx
	return func() tea.Msg {
		recs, err := store.Recent(ctx, historyLimit)
		return historyLoadedMsg{records: recs, err: err}
	}
}

func (m Model) record(resp *watermark.EmbedResponse) tea.Cmd {
	if m.opts.History == nil || resp == nil {
		return nil
	}
	view := m.session.Embed.View()
	rec := history.Record{
		SourceName:   view.SourceName,
		ProcessedURL: view.DownloadURL,
		DownloadName: view.DownloadName,
		Length:       resp.Length,
		Text:         view.Text,
	}
	store, ctx := m.opts.History, m.ctx
	return func() tea.Msg {
		r, err := store.Add(ctx, rec)
		return recordedMsg{record: r, err: err}
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(GetHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabBar())
	b.WriteString("\n")

	switch m.session.Tabs.Current() {
	case workflow.PanelEmbed:
		b.WriteString(m.renderEmbed())
	case workflow.PanelExtract:
		b.WriteString(m.renderExtract())
	case workflow.PanelHistory:
		b.WriteString(m.renderHistory())
	}

	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderTabBar() string {
	var tabs []string
	for _, c := range m.session.Tabs.Controls() {
		style := TabStyle
		if m.session.Tabs.Active(c) {
			style = ActiveTabStyle
		}
		tabs = append(tabs, style.Render(tabLabels[c]))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderField(label string, slot int) string {
	return LabelStyle.Render(label) + "\n" + m.inputs[slot].View() + "\n"
}

func (m Model) renderEmbed() string {
	var b strings.Builder
	b.WriteString(m.renderField("Image", inputEmbedImage))
	b.WriteString(m.renderField("Watermark text", inputEmbedText))

	surf := m.session.Surface()
	if surf.EmbedResultVisible {
		v := surf.Embed
		body := SuccessStyle.Render(v.Message) + "\n\n" +
			LabelStyle.Render("Length   ") + AccentStyle.Render(v.Length) + "\n" +
			LabelStyle.Render("Preview  ") + InfoStyle.Render(v.PreviewURL) + "\n" +
			LabelStyle.Render("Download ") + BodyStyle.Render(v.DownloadName)
		if m.opts.Downloader != nil {
			body += MutedStyle.Render("  (ctrl+s to save)")
		}
		b.WriteString(ResultBoxStyle.Render(body))
		b.WriteString("\n")
	}
	return BoxStyle.Render(b.String())
}

func (m Model) renderExtract() string {
	var b strings.Builder
	b.WriteString(m.renderField("Image", inputExtractImage))
	b.WriteString(m.renderField("Watermark length", inputExtractLength))

	surf := m.session.Surface()
	if surf.ExtractResultVisible {
		body := LabelStyle.Render("Extracted text") + "\n" + BodyStyle.Render(surf.ExtractedText)
		b.WriteString(ResultBoxStyle.Render(body))
		b.WriteString("\n")
	}
	return BoxStyle.Render(b.String())
}

func (m Model) renderHistory() string {
	switch {
	case m.opts.History == nil:
		return BoxStyle.Render(MutedStyle.Render("History is disabled."))
	case m.historyErr != "":
		return BoxStyle.Render(ErrorStyle.Render(m.historyErr))
	case len(m.records) == 0:
		return BoxStyle.Render(MutedStyle.Render("No embeds recorded yet."))
	}
	return BoxStyle.Render(m.history.View())
}

func renderRecords(recs []history.Record) string {
	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %s -> %s  %s  %q",
			MutedStyle.Render(r.CreatedAt.Local().Format(time.DateTime)),
			r.SourceName,
			r.DownloadName,
			AccentStyle.Render(fmt.Sprintf("len %d", r.Length)),
			r.Text,
		)
	}
	return b.String()
}

func (m Model) renderStatus() string {
	surf := m.session.Surface()

	var parts []string
	if surf.LoadingVisible {
		parts = append(parts, m.spinner.View()+" "+InfoStyle.Render(surf.LoadingText))
	}
	if surf.ErrorVisible {
		parts = append(parts, ErrorBoxStyle.Render(ErrorStyle.Render(surf.ErrorText)))
	}
	if m.notice != "" {
		style := MutedStyle
		if m.noticeErr {
			style = ErrorStyle
		}
		parts = append(parts, style.Render(m.notice))
	}
	if len(parts) == 0 {
		return ""
	}
	return "\n" + strings.Join(parts, "\n")
}

func (m Model) renderHelp() string {
	keys := []string{"f1/f2/f3", "Tabs"}
	switch m.session.Tabs.Current() {
	case workflow.PanelEmbed:
		keys = append(keys, "tab", "Next field", "enter", "Embed")
		if m.session.Surface().EmbedResultVisible && m.opts.Downloader != nil {
			keys = append(keys, "ctrl+s", "Save image")
		}
	case workflow.PanelExtract:
		keys = append(keys, "tab", "Next field", "enter", "Extract")
	case workflow.PanelHistory:
		keys = append(keys, "up/down", "Scroll")
	}
	keys = append(keys, "ctrl+c", "Quit")
	return KeyHelp(keys...)
}

// Session returns the workflow session driven by the UI
func (m Model) Session() *workflow.Session { return m.session }

// IsQuitting reports whether the user asked to quit
func (m Model) IsQuitting() bool { return m.quitting }

// Notice returns the last download or status notice
func (m Model) Notice() string { return m.notice }

// RunUI runs the interactive UI until the user quits
func RunUI(session *workflow.Session, opts Options) error {
	model := NewModel(session, opts)
	defer model.cancel()

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
