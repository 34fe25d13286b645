package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"microgpt/pkg/dataset"
	gptmodel "microgpt/pkg/model"
	"microgpt/pkg/runlog"
	"microgpt/pkg/tokenizer"
	"microgpt/pkg/train"
)

const (
	tabTrain = iota
	tabSamples
	tabLogs
)

type styles struct {
	title      lipgloss.Style
	tab        lipgloss.Style
	tabActive  lipgloss.Style
	panel      lipgloss.Style
	panelTitle lipgloss.Style
	selected   lipgloss.Style
	dim        lipgloss.Style
	ok         lipgloss.Style
	warn       lipgloss.Style
	graphLoss  lipgloss.Style
}

func defaultStyles() styles {
	brand := lipgloss.AdaptiveColor{Light: "26", Dark: "81"}
	subtle := lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	border := lipgloss.AdaptiveColor{Light: "250", Dark: "238"}
	return styles{
		title:      lipgloss.NewStyle().Bold(true).Foreground(brand),
		tab:        lipgloss.NewStyle().Padding(0, 1).Foreground(subtle),
		tabActive:  lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("15")).Background(brand),
		panel:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1),
		panelTitle: lipgloss.NewStyle().Bold(true).Foreground(brand),
		selected:   lipgloss.NewStyle().Bold(true).Foreground(brand),
		dim:        lipgloss.NewStyle().Foreground(subtle),
		ok:         lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		warn:       lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		graphLoss:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

type keyMap struct {
	Start    key.Binding
	Stop     key.Binding
	Sample   key.Binding
	Quit     key.Binding
	TabNext  key.Binding
	TabPrev  key.Binding
	Up       key.Binding
	Down     key.Binding
	Edit     key.Binding
	Apply    key.Binding
	Cancel   key.Binding
	Cycle    key.Binding
	Preset1  key.Binding
	Preset2  key.Binding
	Preset3  key.Binding
	ClearLog key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Sample, k.TabNext, k.Edit, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop, k.Sample, k.ClearLog, k.Quit},
		{k.TabNext, k.TabPrev, k.Up, k.Down},
		{k.Edit, k.Apply, k.Cancel, k.Cycle},
		{k.Preset1, k.Preset2, k.Preset3, k.Help},
	}
}

func defaultKeys() keyMap {
	return keyMap{
		Start:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Stop:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Sample:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "sample")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		TabNext:  key.NewBinding(key.WithKeys("tab", "l"), key.WithHelp("tab/l", "next tab")),
		TabPrev:  key.NewBinding(key.WithKeys("shift+tab", "h"), key.WithHelp("shift+tab/h", "prev tab")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("up/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("down/j", "down")),
		Edit:     key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e/enter", "edit")),
		Apply:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel edit")),
		Cycle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "cycle toggle")),
		Preset1:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "preset tiny")),
		Preset2:  key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "preset names")),
		Preset3:  key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "preset deeper")),
		ClearLog: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear logs")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	}
}

type startedMsg struct {
	sess   *train.Session
	handle *train.Handle
	store  *runlog.Store
	runID  int64
	cfg    runConfig
	docs   int
}
type startErrMsg struct{ err error }
type stepMsg train.StepResult
type doneMsg struct {
	summary train.Summary
	err     error
}
type samplesMsg struct {
	texts []string
	err   error
}
type animTickMsg struct{ ts time.Time }

type model struct {
	width  int
	height int
	styles styles
	keys   keyMap
	help   help.Model
	tabs   []string
	tabIdx int

	fields   []cfgField
	fieldIdx int
	presets  []preset
	editor   textinput.Model
	editing  bool

	spin       spinner.Model
	logView    viewport.Model
	sampleView viewport.Model
	logLines   []string
	samples    []string

	status    string
	running   bool
	sampling  bool
	lastError string

	cfg    runConfig
	sess   *train.Session
	handle *train.Handle
	store  *runlog.Store
	runID  int64

	lastStep       train.StepResult
	lossSeries     []float64
	lossAnim       float64
	lossVel        float64
	lossAnimSeries []float64
	progressAnim   float64
	progressVel    float64
	animPrimed     bool
	graphSpring    harmonica.Spring
}

func initialModel() model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))

	ed := textinput.New()
	ed.CharLimit = 512
	ed.Width = 36

	logVP := viewport.New(100, 16)
	logVP.SetContent("logs will appear here")
	sampleVP := viewport.New(100, 16)
	sampleVP.SetContent("samples will appear here")

	return model{
		styles:      defaultStyles(),
		keys:        defaultKeys(),
		help:        help.New(),
		tabs:        []string{"Train", "Samples", "Logs"},
		fields:      defaultFields(),
		presets:     defaultPresets(),
		editor:      ed,
		spin:        sp,
		logView:     logVP,
		sampleView:  sampleVP,
		status:      "idle",
		graphSpring: harmonica.NewSpring(harmonica.FPS(30), 6.0, 1.0),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, animTickCmd())
}

func animTickCmd() tea.Cmd {
	return tea.Tick(time.Second/30, func(ts time.Time) tea.Msg { return animTickMsg{ts: ts} })
}

// setupCmd loads the data and starts a run off the UI goroutine.
func setupCmd(cfg runConfig) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		docs, source, err := dataset.Resolve(ctx, cfg.datasetPreset, cfg.datasetPath)
		if err != nil {
			return startErrMsg{err}
		}
		cfg.datasetPath = source
		rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed))
		dataset.Shuffle(docs, rng)
		tok, err := tokenizer.FromDocs(cfg.tokenizerMode, docs, cfg.bpeEncoding, cfg.tokenVocabSize)
		if err != nil {
			return startErrMsg{err}
		}
		sess, err := train.NewSession(docs, tok, cfg.model, cfg.train, rng)
		if err != nil {
			return startErrMsg{err}
		}
		msg := startedMsg{sess: sess, cfg: cfg, docs: len(docs)}
		if cfg.runDB != "" {
			store, err := runlog.Open(ctx, cfg.runDB)
			if err != nil {
				return startErrMsg{err}
			}
			runID, err := store.CreateRun(ctx, runlog.RunInfo{
				Dataset:   cfg.datasetPath,
				Tokenizer: cfg.tokenizerMode,
				VocabSize: tok.VocabSize(),
				NumParams: sess.GPT().Params.NumParams(),
				NumSteps:  cfg.train.NumSteps,
				Config:    map[string]any{"model": cfg.model, "adam": cfg.train.Adam, "linear_decay": cfg.train.LinearDecay},
			})
			if err != nil {
				store.Close()
				return startErrMsg{err}
			}
			msg.store, msg.runID = store, runID
		}
		h, err := sess.Start(ctx)
		if err != nil {
			if msg.store != nil {
				msg.store.Close()
			}
			return startErrMsg{err}
		}
		msg.handle = h
		return msg
	}
}

func waitStepCmd(h *train.Handle) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-h.Results()
		if !ok {
			sum, err := h.Wait()
			return doneMsg{summary: sum, err: err}
		}
		return stepMsg(res)
	}
}

func generateCmd(sess *train.Session, opts gptmodel.SamplingOptions, n int) tea.Cmd {
	return func() tea.Msg {
		texts := make([]string, 0, n)
		for range n {
			text, err := sess.Generate(opts)
			if err != nil {
				return samplesMsg{texts: texts, err: err}
			}
			texts = append(texts, text)
		}
		return samplesMsg{texts: texts}
	}
}

func (m *model) appendLog(line string) {
	m.logLines = appendLine(m.logLines, time.Now().Format("15:04:05")+" "+line, 2000)
	m.logView.SetContent(strings.Join(m.logLines, "\n"))
	m.logView.GotoBottom()
}

func (m *model) addSamples(step int, texts []string) {
	for _, t := range texts {
		label := "final"
		if step > 0 {
			label = fmt.Sprintf("step %d", step)
		}
		if t == "" {
			t = "(empty)"
		}
		m.samples = appendLine(m.samples, fmt.Sprintf("[%s] %s", label, t), 500)
	}
	m.sampleView.SetContent(strings.Join(m.samples, "\n"))
	m.sampleView.GotoBottom()
}

func appendLine(lines []string, line string, capN int) []string {
	lines = append(lines, line)
	if len(lines) > capN {
		lines = lines[len(lines)-capN:]
	}
	return lines
}

func (m *model) fieldByKey(key string) *cfgField {
	for i := range m.fields {
		if m.fields[i].Key == key {
			return &m.fields[i]
		}
	}
	return nil
}

func (m *model) applyPreset(idx int) {
	if idx < 0 || idx >= len(m.presets) {
		return
	}
	for k, v := range m.presets[idx].values {
		if f := m.fieldByKey(k); f != nil {
			f.Value = v
		}
	}
	m.appendLog("[system] preset loaded: " + m.presets[idx].name)
}

func (m *model) cycleField(i int) {
	if i < 0 || i >= len(m.fields) {
		return
	}
	f := &m.fields[i]
	switch f.Type {
	case fieldBool:
		if strings.EqualFold(f.Value, "true") {
			f.Value = "false"
		} else {
			f.Value = "true"
		}
	case fieldChoice:
		if len(f.Choices) == 0 {
			return
		}
		idx := 0
		for j, c := range f.Choices {
			if c == f.Value {
				idx = j
				break
			}
		}
		f.Value = f.Choices[(idx+1)%len(f.Choices)]
	}
}

func (m *model) startEdit() {
	if m.running || m.tabIdx != tabTrain {
		return
	}
	f := m.fields[m.fieldIdx]
	m.editing = true
	m.editor.SetValue(f.Value)
	m.editor.Placeholder = f.Label
	m.editor.Focus()
}

func (m *model) applyEdit() {
	m.fields[m.fieldIdx].Value = strings.TrimSpace(m.editor.Value())
	m.editing = false
	m.editor.Blur()
}

func (m *model) cancelEdit() {
	m.editing = false
	m.editor.Blur()
}

func (m *model) startTraining() tea.Cmd {
	if m.running || m.sampling {
		return nil
	}
	cfg, err := parseFields(m.fields)
	if err != nil {
		m.lastError = err.Error()
		m.appendLog("[error] " + err.Error())
		return nil
	}
	m.lastError = ""
	m.running = true
	m.status = "starting"
	m.lastStep = train.StepResult{}
	m.lossSeries, m.lossAnimSeries = nil, nil
	m.animPrimed = false
	m.progressAnim, m.progressVel = 0, 0
	m.appendLog("[system] starting run")
	return setupCmd(cfg)
}

func (m *model) stopTraining() {
	if m.handle == nil || !m.running {
		return
	}
	m.handle.Abort()
	m.status = "stopping"
	m.appendLog("[system] stop requested")
}

func (m *model) closeStore(status string) {
	if m.store == nil {
		return
	}
	if err := m.store.FinishRun(context.Background(), m.runID, status); err != nil {
		m.appendLog("[warn] " + err.Error())
	}
	m.store.Close()
	m.store = nil
}

func (m *model) animateMetrics() {
	if len(m.lossSeries) > 0 {
		target := m.lossSeries[len(m.lossSeries)-1]
		if !m.animPrimed {
			m.lossAnim, m.lossVel = target, 0
		}
		m.lossAnim, m.lossVel = m.graphSpring.Update(m.lossAnim, m.lossVel, target)
		m.lossAnimSeries = appendSeries(m.lossAnimSeries, m.lossAnim, 5000)
		m.animPrimed = true
	}
	ratio := 0.0
	if m.lastStep.NumSteps > 0 {
		ratio = float64(m.lastStep.Step) / float64(m.lastStep.NumSteps)
	}
	m.progressAnim, m.progressVel = m.graphSpring.Update(m.progressAnim, m.progressVel, ratio)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)
	if m.editing {
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
	}
	switch m.tabIdx {
	case tabSamples:
		m.sampleView, cmd = m.sampleView.Update(msg)
		cmds = append(cmds, cmd)
	case tabLogs:
		m.logView, cmd = m.logView.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.logView.Width = max(40, m.width-8)
		m.logView.Height = max(6, m.height-12)
		m.sampleView.Width = max(40, m.width-8)
		m.sampleView.Height = max(6, m.height-12)
		m.editor.Width = max(24, min(64, m.width/2))
		m.help.Width = m.width

	case animTickMsg:
		m.animateMetrics()
		cmds = append(cmds, animTickCmd())

	case startedMsg:
		m.sess, m.handle, m.store, m.runID, m.cfg = msg.sess, msg.handle, msg.store, msg.runID, msg.cfg
		m.status = "running"
		m.appendLog(fmt.Sprintf("[system] dataset %s: %d docs, vocab %d, params %d",
			msg.cfg.datasetPath, msg.docs, msg.sess.Tokenizer().VocabSize(), msg.sess.GPT().Params.NumParams()))
		if m.store != nil {
			m.appendLog(fmt.Sprintf("[system] run log %s: run %d", msg.cfg.runDB, msg.runID))
		}
		cmds = append(cmds, waitStepCmd(m.handle))

	case startErrMsg:
		m.running = false
		m.status = "failed"
		m.lastError = msg.err.Error()
		m.appendLog("[error] " + msg.err.Error())

	case stepMsg:
		res := train.StepResult(msg)
		m.lastStep = res
		m.lossSeries = appendSeries(m.lossSeries, res.SmoothLoss, 5000)
		if m.store != nil {
			rec := runlog.StepRecord{Step: res.Step, Loss: res.Loss, SmoothLoss: res.SmoothLoss, LearningRate: res.LearningRate}
			if err := m.store.RecordStep(context.Background(), m.runID, rec); err != nil {
				m.appendLog("[warn] " + err.Error())
			}
		}
		if res.Step == 1 || res.Step%max(1, res.NumSteps/20) == 0 {
			m.appendLog(fmt.Sprintf("[step] %s | smooth %.4f | lr %.5f", res, res.SmoothLoss, res.LearningRate))
		}
		if len(res.Samples) > 0 {
			m.addSamples(res.Step, res.Samples)
		}
		cmds = append(cmds, waitStepCmd(m.handle))

	case doneMsg:
		m.running = false
		m.handle = nil
		switch {
		case msg.err != nil:
			m.status = "failed"
			m.lastError = msg.err.Error()
			m.appendLog("[error] " + msg.err.Error())
			m.closeStore(runlog.StatusFailed)
		case msg.summary.Cancelled:
			m.status = "cancelled"
			m.appendLog(fmt.Sprintf("[system] stopped at step %d", msg.summary.Steps))
			m.closeStore(runlog.StatusCancelled)
		default:
			m.status = "done"
			m.appendLog(fmt.Sprintf("[system] finished %d steps in %s, loss %.4f",
				msg.summary.Steps, msg.summary.Elapsed.Truncate(time.Millisecond), msg.summary.SmoothLoss))
			m.closeStore(runlog.StatusDone)
		}
		if msg.err == nil && m.sess != nil {
			m.sampling = true
			cmds = append(cmds, generateCmd(m.sess, m.cfg.train.Sampling, m.cfg.sampleCount))
		}

	case samplesMsg:
		m.sampling = false
		m.addSamples(0, msg.texts)
		if msg.err != nil {
			m.lastError = msg.err.Error()
			m.appendLog("[error] sample: " + msg.err.Error())
		}

	case tea.KeyMsg:
		if m.editing {
			switch msg.String() {
			case "enter":
				m.applyEdit()
			case "esc":
				m.cancelEdit()
			case "ctrl+c":
				return m, tea.Quit
			}
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.stopTraining()
			m.closeStore(runlog.StatusCancelled)
			return m, tea.Quit
		case key.Matches(msg, m.keys.TabNext):
			m.tabIdx = (m.tabIdx + 1) % len(m.tabs)
		case key.Matches(msg, m.keys.TabPrev):
			m.tabIdx = (m.tabIdx - 1 + len(m.tabs)) % len(m.tabs)
		case key.Matches(msg, m.keys.Start):
			cmds = append(cmds, m.startTraining())
		case key.Matches(msg, m.keys.Stop):
			m.stopTraining()
		case key.Matches(msg, m.keys.Sample):
			if m.sess != nil && !m.running && !m.sampling {
				m.sampling = true
				cmds = append(cmds, generateCmd(m.sess, m.cfg.train.Sampling, 1))
			}
		case key.Matches(msg, m.keys.ClearLog):
			m.logLines = nil
			m.logView.SetContent("")
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		if m.tabIdx != tabTrain || m.running {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Up):
			m.fieldIdx = max(0, m.fieldIdx-1)
		case key.Matches(msg, m.keys.Down):
			m.fieldIdx = min(len(m.fields)-1, m.fieldIdx+1)
		case key.Matches(msg, m.keys.Edit):
			m.startEdit()
			cmds = append(cmds, textinput.Blink)
		case key.Matches(msg, m.keys.Cycle):
			m.cycleField(m.fieldIdx)
		case key.Matches(msg, m.keys.Preset1):
			m.applyPreset(0)
		case key.Matches(msg, m.keys.Preset2):
			m.applyPreset(1)
		case key.Matches(msg, m.keys.Preset3):
			m.applyPreset(2)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m model) renderTabs() string {
	parts := make([]string, len(m.tabs))
	for i, t := range m.tabs {
		if i == m.tabIdx {
			parts[i] = m.styles.tabActive.Render(t)
		} else {
			parts[i] = m.styles.tab.Render(t)
		}
	}
	return m.styles.title.Render("microgpt") + "  " + strings.Join(parts, " ")
}

func (m model) panel(title string, lines []string, w int) string {
	return m.styles.panel.Width(panelInnerWidth(w)).Render(m.styles.panelTitle.Render(title) + "\n" + strings.Join(lines, "\n"))
}

func panelInnerWidth(total int) int {
	// Rounded border and horizontal padding take two columns each.
	return max(8, total-4)
}

func (m model) viewConfig(w, h int) string {
	maxRows := max(4, h-6)
	start := max(0, m.fieldIdx-maxRows/2)
	if start+maxRows > len(m.fields) {
		start = max(0, len(m.fields)-maxRows)
	}
	end := min(len(m.fields), start+maxRows)

	lines := make([]string, 0, end-start+4)
	for i := start; i < end; i++ {
		f := m.fields[i]
		line := truncateWithEllipsis(fmt.Sprintf("  %-16s = %s", f.Key, f.Value), max(20, w-6))
		if i == m.fieldIdx {
			line = m.styles.selected.Render(truncateWithEllipsis(fmt.Sprintf("> %-16s = %s", f.Key, f.Value), max(20, w-6)))
		}
		lines = append(lines, line)
	}
	f := m.fields[m.fieldIdx]
	lines = append(lines, "", m.styles.dim.Render(truncateWithEllipsis(f.Label+": "+f.Desc, max(20, w-6))))
	if m.editing {
		lines = append(lines, "Editing: "+m.editor.View())
	}
	return m.panel("Config", lines, w)
}

func (m model) viewRun(w int) string {
	status := m.status
	switch status {
	case "done":
		status = m.styles.ok.Render(status)
	case "failed", "cancelled":
		status = m.styles.warn.Render(status)
	}
	if m.running || m.sampling {
		status = m.spin.View() + " " + status
	}
	barW := max(10, w-14)
	res := m.lastStep
	lines := []string{
		"Status:   " + status,
		fmt.Sprintf("Progress: %s %3.0f%%", progressBar(m.progressAnim, barW), clamp01(m.progressAnim)*100),
		fmt.Sprintf("Step:     %d / %d", res.Step, res.NumSteps),
		fmt.Sprintf("Loss:     %.4f (smooth %.4f)", res.Loss, res.SmoothLoss),
		fmt.Sprintf("LR:       %.6f", res.LearningRate),
		fmt.Sprintf("Elapsed:  %s", res.Elapsed.Truncate(time.Second)),
		"",
		"Smoothed loss",
		m.styles.graphLoss.Render(sparkline(m.lossAnimSeries, max(10, w-6))),
	}
	if n := len(m.samples); n > 0 {
		lines = append(lines, "", "Latest samples")
		for _, s := range m.samples[max(0, n-3):] {
			lines = append(lines, truncateWithEllipsis(s, max(10, w-6)))
		}
	}
	if m.lastError != "" {
		lines = append(lines, "", m.styles.warn.Render(truncateWithEllipsis("Last error: "+m.lastError, max(10, w-6))))
	}
	return m.panel("Run", lines, w)
}

func (m model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	header := m.renderTabs()
	footer := m.help.View(m.keys)
	contentW := max(60, m.width-2)
	contentH := max(8, m.height-lipgloss.Height(header)-lipgloss.Height(footer)-2)

	var content string
	switch m.tabIdx {
	case tabTrain:
		if contentW < 110 {
			content = lipgloss.JoinVertical(lipgloss.Left, m.viewConfig(contentW, contentH/2), m.viewRun(contentW))
		} else {
			leftW := contentW / 2
			content = lipgloss.JoinHorizontal(lipgloss.Top, m.viewConfig(leftW, contentH), " ", m.viewRun(contentW-leftW-1))
		}
	case tabSamples:
		content = m.panel("Samples", []string{m.sampleView.View()}, contentW)
	default:
		content = m.panel("Logs", []string{m.logView.View()}, contentW)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", fitHeight(content, contentH), footer)
}

func main() {
	m := initialModel()
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
