package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"sr-wizard/internal/captcha"
	"sr-wizard/internal/domain"
	"sr-wizard/internal/validate"
	"sr-wizard/internal/wizard"
)

// fieldCaptcha is the summary step's only input. It is not part of the form.
const fieldCaptcha domain.Field = "captcha"

type registerWizardKeyMap struct {
	NextStep    key.Binding
	PrevStep    key.Binding
	NextField   key.Binding
	PrevField   key.Binding
	Advance     key.Binding
	Primary     key.Binding
	Back        key.Binding
	CycleNext   key.Binding
	CyclePrev   key.Binding
	EditCompany key.Binding
	RefreshCode key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func (k registerWizardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Advance, k.Primary, k.Back, k.Help, k.Quit}
}

func (k registerWizardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextStep, k.PrevStep, k.NextField, k.PrevField, k.Advance, k.Back},
		{k.Primary, k.CycleNext, k.CyclePrev, k.EditCompany, k.RefreshCode},
		{k.Help, k.Quit},
	}
}

func defaultRegisterWizardKeyMap() registerWizardKeyMap {
	return registerWizardKeyMap{
		NextStep: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("right", "next step (tabs)"),
		),
		PrevStep: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("left", "prev step (tabs)"),
		),
		NextField: key.NewBinding(
			key.WithKeys("down", "tab"),
			key.WithHelp("tab/down", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("up", "shift+tab"),
			key.WithHelp("shift+tab/up", "prev field / focus tabs"),
		),
		Advance: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm field"),
		),
		Primary: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "primary action"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		CycleNext: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "next bank/option"),
		),
		CyclePrev: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "prev bank/option"),
		),
		EditCompany: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "edit company"),
		),
		RefreshCode: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "new code"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

var (
	textColor      = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#E6EDF3"}
	mutedTextColor = lipgloss.AdaptiveColor{Light: "#57606A", Dark: "#8B949E"}
	borderColor    = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#30363D"}
	panelBgColor   = lipgloss.AdaptiveColor{Light: "#F6F8FA", Dark: "#0D1117"}
	accentColor    = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
	accentBgColor  = lipgloss.AdaptiveColor{Light: "#DDF4FF", Dark: "#1F2937"}
	successColor   = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	errorFgColor   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	warningColor   = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}

	pageStyle = lipgloss.NewStyle().Padding(1, 2)

	titleBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("31")).
			Padding(0, 1)

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(textColor)
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(textColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorFgColor)
	hintStyle    = lipgloss.NewStyle().Foreground(mutedTextColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Background(panelBgColor).
			Padding(0, 2)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(errorFgColor).
			PaddingLeft(1)

	helpPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	fieldStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(borderColor).
			PaddingLeft(1)

	fieldFocusStyle = fieldStyle.BorderForeground(accentColor)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	inputFocusStyle = inputStyle.BorderForeground(accentColor)

	tabActiveBorder = lipgloss.Border{
		Top:         "─",
		Bottom:      " ",
		Left:        "│",
		Right:       "│",
		TopLeft:     "╭",
		TopRight:    "╮",
		BottomLeft:  "┘",
		BottomRight: "└",
	}

	tabBorder = lipgloss.Border{
		Top:         "─",
		Bottom:      "─",
		Left:        "│",
		Right:       "│",
		TopLeft:     "╭",
		TopRight:    "╮",
		BottomLeft:  "┴",
		BottomRight: "┴",
	}

	tabBaseStyle = lipgloss.NewStyle().
			Border(tabBorder, true).
			BorderForeground(borderColor).
			Foreground(mutedTextColor).
			Padding(0, 1)

	tabCurrentStyle = tabBaseStyle.
			BorderForeground(accentColor).
			Foreground(textColor).
			Bold(true)

	tabFocusedStyle = tabCurrentStyle.
			Border(tabActiveBorder, true).
			Background(accentBgColor)

	tabDoneStyle = tabBaseStyle.Foreground(successColor)

	tabGapStyle = tabBaseStyle.
			BorderTop(false).
			BorderLeft(false).
			BorderRight(false)

	buttonStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(lipgloss.AdaptiveColor{Light: "#F6F8FA", Dark: "#161B22"}).
			Padding(0, 2).
			MarginRight(1)

	buttonPrimaryStyle = buttonStyle.
				Foreground(lipgloss.Color("230")).
				Background(lipgloss.Color("31")).
				Bold(true)

	buttonDisabledStyle = buttonStyle.
				Foreground(mutedTextColor).
				Background(lipgloss.AdaptiveColor{Light: "#F6F8FA", Dark: "#161B22"})
)

type banksLoadedMsg struct {
	dir *domain.BankDirectory
}

type autofillMsg struct {
	result wizard.AutoFillResult
}

type companyCheckedMsg struct {
	outcome wizard.CompanyOutcome
}

type detailsLoadedMsg struct {
	req     wizard.DetailsRequest
	details domain.SRDetails
	err     error
}

type submitProgressMsg struct {
	progress wizard.Progress
	ch       <-chan wizard.Progress
}

type submitDoneMsg struct {
	outcome wizard.SubmitOutcome
}

type noticeExpiredMsg struct {
	id int
}

// asyncRunner turns blocking work into a command. Tests swap it for a
// queue they drain by hand.
type asyncRunner func(fn func() tea.Msg) tea.Cmd

func runAsync(fn func() tea.Msg) tea.Cmd { return fn }

type registerWizardModel struct {
	input RegisterWizardInput
	ctx   context.Context
	stop  context.CancelFunc
	log   *zap.Logger
	text  catalog
	async asyncRunner

	session   *wizard.Session
	autofill  *wizard.AutoFill
	checker   *wizard.Checker
	banks     *wizard.BankLoader
	submitter *wizard.Submitter
	captcha   *captcha.Challenge

	width  int
	height int

	help     help.Model
	keys     registerWizardKeyMap
	spinner  spinner.Model
	progress progress.Model
	review   table.Model

	inputs    map[domain.Field]*textinput.Model
	focus     int
	focusTabs bool

	bankSource   domain.BankSource
	autofilling  bool
	autofilledCR string
	submitting   bool
	phase        wizard.Progress

	notice   wizard.Notice
	noticeID int

	confirmQuit bool
	quitting    bool
	submitted   []Submission
}

func runRegisterWizardInteractive(input RegisterWizardInput) (RegisterWizardResult, error) {
	model := newRegisterWizardModel(input)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithFilter(registerWizardFilter))
	finalModel, err := program.Run()
	if err != nil {
		return RegisterWizardResult{}, err
	}
	m, ok := finalModel.(*registerWizardModel)
	if !ok {
		return RegisterWizardResult{}, fmt.Errorf("unexpected register wizard model type %T", finalModel)
	}
	return RegisterWizardResult{Submissions: m.submitted}, nil
}

// registerWizardFilter holds back quit requests that did not come through
// the confirmed quit key.
func registerWizardFilter(model tea.Model, msg tea.Msg) tea.Msg {
	if _, ok := msg.(tea.QuitMsg); !ok {
		return msg
	}
	m, ok := model.(*registerWizardModel)
	if !ok {
		return msg
	}
	if m.dirty() && !m.quitting {
		return nil
	}
	return msg
}

func newRegisterWizardModel(input RegisterWizardInput) *registerWizardModel {
	parent := input.Context
	if parent == nil {
		parent = context.Background()
	}
	log := input.Logger
	if log == nil {
		log = zap.NewNop()
	}
	session := input.Session
	if session == nil {
		session = wizard.NewSession(wizard.Options{})
	}
	challenge := input.Captcha
	if challenge == nil {
		challenge = captcha.New()
	}
	ctx, stop := context.WithCancel(parent)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	m := &registerWizardModel{
		input:     input,
		ctx:       ctx,
		stop:      stop,
		log:       log.Named("tui"),
		text:      newCatalog(session.Lang),
		async:     runAsync,
		session:   session,
		autofill:  wizard.NewAutoFill(input.Gateway, log),
		checker:   wizard.NewChecker(input.Gateway, log),
		banks:     wizard.NewBankLoader(input.Gateway, log),
		submitter: wizard.NewSubmitter(input.Gateway, log),
		captcha:   challenge,
		help:      help.New(),
		keys:      defaultRegisterWizardKeyMap(),
		spinner:   sp,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	m.initInputs()
	m.initReviewTable()
	m.applyFocus()
	return m
}

func (m *registerWizardModel) initInputs() {
	m.inputs = map[domain.Field]*textinput.Model{}
	for _, step := range []domain.Step{domain.StepCompany, domain.StepContract, domain.StepPayment} {
		for _, f := range validate.StepFields(step) {
			in := textinput.New()
			in.Prompt = ""
			in.CharLimit = validate.MaxLength(f)
			switch {
			case f.Date():
				in.Placeholder = "YYYY-MM-DD"
				in.CharLimit = len(domain.DateLayout)
			case f == domain.FieldYearsToRenew:
				in.Placeholder = "1 / 2"
				in.CharLimit = 1
			case f == domain.FieldBankCode:
				in.Placeholder = m.text.pick(entry{"bank code", "رمز البنك"})
				in.CharLimit = 8
			}
			m.inputs[f] = &in
		}
	}
	code := textinput.New()
	code.Prompt = ""
	code.CharLimit = captcha.CodeLength
	code.Placeholder = m.text.pick(entry{"code shown above", "الرمز أعلاه"})
	m.inputs[fieldCaptcha] = &code
	m.syncInputs()
}

func (m *registerWizardModel) initReviewTable() {
	m.review = table.New(
		table.WithColumns([]table.Column{
			{Title: m.text.pick(entry{"Field", "الحقل"}), Width: 26},
			{Title: m.text.pick(entry{"Value", "القيمة"}), Width: 36},
		}),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Foreground(textColor).
		Background(panelBgColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		BorderBottom(true).
		Bold(true)
	styles.Cell = styles.Cell.Foreground(textColor)
	styles.Selected = styles.Selected.
		Foreground(textColor).
		Background(panelBgColor).
		Bold(false)
	m.review.SetStyles(styles)
}

func (m *registerWizardModel) Init() tea.Cmd {
	loader := m.banks
	ctx := m.ctx
	load := m.async(func() tea.Msg {
		return banksLoadedMsg{dir: loader.Load(ctx)}
	})
	return tea.Batch(textinput.Blink, m.spinner.Tick, load)
}

func (m *registerWizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case noticeExpiredMsg:
		if msg.id == m.noticeID {
			m.notice = wizard.Notice{}
		}
		return m, nil
	case banksLoadedMsg:
		m.session.SetBanks(msg.dir)
		m.bankSource = msg.dir.Source()
		m.syncInputs()
		return m, nil
	case autofillMsg:
		n, ok := m.autofill.Apply(m.session, msg.result)
		if !ok {
			return m, nil
		}
		m.autofilling = false
		m.syncInputs()
		return m, m.setNotice(n)
	case companyCheckedMsg:
		n := m.session.ApplyCompanyOutcome(msg.outcome)
		m.syncInputs()
		m.clampFocus()
		return m, m.setNotice(n)
	case detailsLoadedMsg:
		n := m.session.ApplySRDetails(msg.req, msg.details, msg.err)
		return m, m.setNotice(n)
	case submitProgressMsg:
		if !m.submitting {
			return m, nil
		}
		m.phase = msg.progress
		return m, m.waitProgress(msg.ch)
	case submitDoneMsg:
		return m, m.finishSubmit(msg.outcome)
	case tea.KeyMsg:
		return m, m.updateKey(msg)
	}
	return m, nil
}

func (m *registerWizardModel) updateKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		if !m.dirty() || m.confirmQuit {
			m.quitting = true
			m.autofill.Cancel()
			m.stop()
			return tea.Quit
		}
		m.confirmQuit = true
		return nil
	}
	m.confirmQuit = false

	field, editing := m.focusedField()
	switch {
	case key.Matches(msg, m.keys.Help) && !editing:
		m.help.ShowAll = !m.help.ShowAll
		return nil
	case key.Matches(msg, m.keys.Primary):
		return m.primary()
	case key.Matches(msg, m.keys.Back):
		return m.back()
	case key.Matches(msg, m.keys.NextField):
		return m.moveFocus(1)
	case key.Matches(msg, m.keys.PrevField):
		return m.moveFocus(-1)
	case key.Matches(msg, m.keys.EditCompany):
		return m.editCompany()
	case key.Matches(msg, m.keys.RefreshCode):
		if m.session.Active() == domain.StepSummary && m.captcha.Refresh() {
			m.inputs[fieldCaptcha].SetValue("")
		}
		return nil
	case key.Matches(msg, m.keys.CycleNext) && editing:
		m.cycle(field, 1)
		return nil
	case key.Matches(msg, m.keys.CyclePrev) && editing:
		m.cycle(field, -1)
		return nil
	case key.Matches(msg, m.keys.NextStep) && m.focusTabs:
		return m.jump(1)
	case key.Matches(msg, m.keys.PrevStep) && m.focusTabs:
		return m.jump(-1)
	case key.Matches(msg, m.keys.Advance):
		if !editing {
			return m.primary()
		}
		if field == fieldCaptcha {
			return m.verifyCaptcha()
		}
		if m.focus >= len(m.focusable())-1 {
			return m.primary()
		}
		return m.moveFocus(1)
	}
	if editing {
		return m.updateInput(field, msg)
	}
	return nil
}

func (m *registerWizardModel) updateInput(field domain.Field, msg tea.KeyMsg) tea.Cmd {
	if field.Identity() && m.session.CompanyValidated() {
		return nil
	}
	in := m.inputs[field]
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	if field == fieldCaptcha {
		m.captcha.SetInput(in.Value())
		return cmd
	}
	if commitOnBlur(field) {
		return cmd
	}
	if v, _ := m.session.SetText(field, in.Value()); v != in.Value() {
		in.SetValue(v)
	}
	return cmd
}

// commitOnBlur fields hold partial text that would not parse while typing.
func commitOnBlur(f domain.Field) bool {
	return f.Date() || f == domain.FieldBankCode
}

func (m *registerWizardModel) commit(field domain.Field) {
	if field == fieldCaptcha || !commitOnBlur(field) {
		return
	}
	if field.Identity() && m.session.CompanyValidated() {
		return
	}
	raw := strings.TrimSpace(m.inputs[field].Value())
	var err error
	if raw == "" && field.Date() {
		err = m.session.SetDate(field, time.Time{})
	} else {
		_, err = m.session.SetText(field, raw)
	}
	if err != nil {
		// the session keeps the inline error for the field
		m.log.Debug("field not stored", zap.String("field", string(field)), zap.Error(err))
	}
}

// leaveField commits and checks the focused field. Leaving the CR number
// starts an auto-fill lookup.
func (m *registerWizardModel) leaveField() tea.Cmd {
	field, ok := m.focusedField()
	if !ok || field == fieldCaptcha {
		return nil
	}
	m.commit(field)
	m.session.Blur(field)
	if field == domain.FieldCRNumber {
		return m.startAutofill()
	}
	return nil
}

func (m *registerWizardModel) focusable() []domain.Field {
	step := m.session.Active()
	switch step {
	case domain.StepSummary:
		if m.captcha.Verified() || m.submitting {
			return nil
		}
		return []domain.Field{fieldCaptcha}
	case domain.StepSRDetails:
		return nil
	}
	var out []domain.Field
	for _, f := range validate.StepFields(step) {
		if m.session.Visible(f) {
			out = append(out, f)
		}
	}
	return out
}

func (m *registerWizardModel) focusedField() (domain.Field, bool) {
	if m.focusTabs {
		return "", false
	}
	fields := m.focusable()
	if m.focus < 0 || m.focus >= len(fields) {
		return "", false
	}
	return fields[m.focus], true
}

func (m *registerWizardModel) clampFocus() {
	fields := m.focusable()
	if m.focus >= len(fields) {
		m.focus = len(fields) - 1
	}
	if m.focus < 0 {
		m.focus = 0
	}
	m.applyFocus()
}

func (m *registerWizardModel) applyFocus() tea.Cmd {
	focused, ok := m.focusedField()
	var cmd tea.Cmd
	for f, in := range m.inputs {
		if ok && f == focused {
			cmd = in.Focus()
			continue
		}
		in.Blur()
	}
	return cmd
}

func (m *registerWizardModel) moveFocus(delta int) tea.Cmd {
	fields := m.focusable()
	if m.focusTabs {
		if delta > 0 && len(fields) > 0 {
			m.focusTabs = false
			m.focus = 0
		}
		return m.applyFocus()
	}
	cmd := m.leaveField()
	// leaving a field may change which fields are visible
	fields = m.focusable()
	next := m.focus + delta
	switch {
	case next < 0:
		m.focusTabs = true
		next = 0
	case next >= len(fields):
		next = len(fields) - 1
	}
	m.focus = next
	return tea.Batch(cmd, m.applyFocus())
}

func (m *registerWizardModel) resetFocus() tea.Cmd {
	m.focus = 0
	m.focusTabs = len(m.focusable()) == 0
	m.refreshReview()
	return m.applyFocus()
}

func (m *registerWizardModel) busy() bool {
	return m.submitting || m.session.ValidatingCompany()
}

func (m *registerWizardModel) primary() tea.Cmd {
	if m.busy() {
		return nil
	}
	leave := m.leaveField()
	var cmd tea.Cmd
	switch m.session.PrimaryAction() {
	case wizard.ActionValidate:
		cmd = m.startValidation()
	case wizard.ActionNext:
		ok, _, n := m.session.Advance()
		if !ok {
			cmd = m.setNotice(n)
			break
		}
		m.notice = wizard.Notice{}
		m.mountStep()
		cmd = m.resetFocus()
	case wizard.ActionViewExistingSR:
		cmd = m.startExistingView()
	case wizard.ActionSubmit:
		cmd = m.startSubmit()
	case wizard.ActionHome:
		cmd = m.goHome()
	}
	return tea.Batch(leave, cmd)
}

func (m *registerWizardModel) back() tea.Cmd {
	if m.busy() {
		return nil
	}
	leave := m.leaveField()
	if !m.session.Back() {
		return leave
	}
	return tea.Batch(leave, m.resetFocus())
}

func (m *registerWizardModel) jump(delta int) tea.Cmd {
	if m.busy() {
		return nil
	}
	if !m.session.JumpTo(m.session.Active() + domain.Step(delta)) {
		return nil
	}
	m.mountStep()
	m.focus = 0
	m.focusTabs = true
	m.refreshReview()
	return m.applyFocus()
}

// mountStep runs after a transition lands on a new step. Summary gets a
// fresh CAPTCHA every time it is entered.
func (m *registerWizardModel) mountStep() {
	if m.session.Active() != domain.StepSummary {
		return
	}
	m.captcha.Generate()
	m.inputs[fieldCaptcha].SetValue("")
}

func (m *registerWizardModel) editCompany() tea.Cmd {
	if m.busy() || m.session.ExistingSRView() || !m.session.CompanyValidated() {
		return nil
	}
	m.session.ResetCompany()
	m.autofilledCR = ""
	m.notice = wizard.Notice{}
	m.syncInputs()
	return m.resetFocus()
}

func (m *registerWizardModel) cycle(field domain.Field, delta int) {
	switch field {
	case domain.FieldBankCode:
		codes := m.session.Banks().Codes()
		if len(codes) == 0 {
			return
		}
		idx := -1
		current := m.session.Form().BankCode
		for i, c := range codes {
			if c == current {
				idx = i
				break
			}
		}
		next := (idx + delta + len(codes)) % len(codes)
		if idx < 0 && delta < 0 {
			next = len(codes) - 1
		}
		if err := m.session.SetBankCode(codes[next]); err == nil {
			m.inputs[field].SetValue(codes[next])
		}
	case domain.FieldYearsToRenew:
		y := domain.YearsOne
		if m.session.Form().YearsToRenew == domain.YearsOne {
			y = domain.YearsTwo
		}
		if err := m.session.SetYearsToRenew(y); err == nil {
			m.inputs[field].SetValue(m.session.Form().Display(field))
		}
	}
}

func (m *registerWizardModel) startAutofill() tea.Cmd {
	if m.session.CompanyValidated() {
		return nil
	}
	cr := m.session.Form().CRNumber
	if cr == m.autofilledCR {
		return nil
	}
	m.autofilledCR = cr
	t, ok := m.autofill.Begin(m.ctx, cr)
	if !ok {
		m.autofilling = false
		return nil
	}
	m.autofilling = true
	af := m.autofill
	return tea.Batch(m.spinner.Tick, m.async(func() tea.Msg {
		return autofillMsg{result: af.Fetch(t)}
	}))
}

func (m *registerWizardModel) startValidation() tea.Cmd {
	q, n, ok := m.session.BeginCompanyValidation()
	if !ok {
		return m.setNotice(n)
	}
	m.notice = wizard.Notice{}
	checker := m.checker
	ctx := m.ctx
	return tea.Batch(m.spinner.Tick, m.async(func() tea.Msg {
		return companyCheckedMsg{outcome: checker.Validate(ctx, q)}
	}))
}

func (m *registerWizardModel) startExistingView() tea.Cmd {
	info, ok := m.session.ExistingSR()
	if !ok {
		return nil
	}
	req, ok := m.session.EnterExistingSRView(info)
	if !ok {
		return nil
	}
	m.notice = wizard.Notice{}
	m.resetFocus()
	gw := m.input.Gateway
	ctx := m.ctx
	return tea.Batch(m.spinner.Tick, m.async(func() tea.Msg {
		d, err := wizard.FetchDetails(ctx, gw, req)
		return detailsLoadedMsg{req: req, details: d, err: err}
	}))
}

func (m *registerWizardModel) verifyCaptcha() tea.Cmd {
	in := m.inputs[fieldCaptcha]
	ok := m.captcha.Verify(in.Value())
	in.SetValue("")
	if !ok {
		m.log.Debug("captcha mismatch", zap.Int("failures", m.captcha.Failures()))
		return m.setNotice(wizard.Notice{
			Kind:        wizard.NoticeWarning,
			Code:        wizard.NoticeCaptchaMismatch,
			AutoDismiss: wizard.DefaultNoticeDelay,
		})
	}
	m.notice = wizard.Notice{}
	return m.resetFocus()
}

func (m *registerWizardModel) startSubmit() tea.Cmd {
	reg, err := m.session.PrepareSubmission(m.captcha.Verified())
	switch {
	case errors.Is(err, wizard.ErrCaptchaUnverified):
		return m.setNotice(wizard.Notice{
			Kind:        wizard.NoticeWarning,
			Code:        wizard.NoticeCaptchaRequired,
			AutoDismiss: wizard.DefaultNoticeDelay,
		})
	case err != nil:
		return m.setNotice(wizard.Notice{Kind: wizard.NoticeError, Code: wizard.NoticeFillRequired, Detail: err.Error()})
	}

	m.submitting = true
	m.phase = wizard.Progress{}
	m.notice = wizard.Notice{}
	m.focusTabs = true
	m.applyFocus()

	// one slot per phase so the sender never blocks
	ch := make(chan wizard.Progress, int(wizard.PhaseDone)+1)
	submitter := m.submitter
	ctx := m.ctx
	run := m.async(func() tea.Msg {
		defer close(ch)
		o := submitter.Submit(ctx, reg, func(p wizard.Progress) { ch <- p })
		return submitDoneMsg{outcome: o}
	})
	return tea.Batch(m.spinner.Tick, run, m.waitProgress(ch))
}

func (m *registerWizardModel) waitProgress(ch <-chan wizard.Progress) tea.Cmd {
	return m.async(func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return submitProgressMsg{progress: p, ch: ch}
	})
}

func (m *registerWizardModel) finishSubmit(o wizard.SubmitOutcome) tea.Cmd {
	m.submitting = false
	n := m.session.ApplySubmission(o)
	if o.Err != nil {
		m.phase = wizard.Progress{}
		m.resetFocus()
		return m.setNotice(n)
	}
	if d, ok := m.session.SRDetails(); ok {
		m.submitted = append(m.submitted, Submission{Details: d, Form: m.session.Form()})
		m.log.Info("service request submitted",
			zap.String("incident", d.IncidentNumber),
			zap.Bool("existing", d.Existing()))
	}
	m.phase = wizard.Progress{Phase: wizard.PhaseDone, Percent: 1}
	m.resetFocus()
	return m.setNotice(n)
}

func (m *registerWizardModel) goHome() tea.Cmd {
	m.autofill.Cancel()
	m.session.ResetToHome()
	m.captcha.Generate()
	m.autofilling = false
	m.autofilledCR = ""
	m.phase = wizard.Progress{}
	m.notice = wizard.Notice{}
	for _, in := range m.inputs {
		in.SetValue("")
	}
	m.syncInputs()
	m.focus = 0
	m.focusTabs = false
	m.refreshReview()
	return m.applyFocus()
}

// setNotice shows n and schedules its dismissal. Empty notices leave the
// current one in place.
func (m *registerWizardModel) setNotice(n wizard.Notice) tea.Cmd {
	if n.Empty() {
		return nil
	}
	m.noticeID++
	m.notice = n
	if n.AutoDismiss <= 0 {
		return nil
	}
	delay := n.AutoDismiss
	if delay == wizard.DefaultNoticeDelay && m.input.NoticeDelay > 0 {
		delay = m.input.NoticeDelay
	}
	id := m.noticeID
	return tea.Tick(delay, func(time.Time) tea.Msg { return noticeExpiredMsg{id: id} })
}

// syncInputs copies the form into the inputs. A field the user is still
// typing into, or one holding unparsed text, keeps its text.
func (m *registerWizardModel) syncInputs() {
	focused, editing := m.focusedField()
	form := m.session.Form()
	for f, in := range m.inputs {
		if f == fieldCaptcha {
			continue
		}
		if commitOnBlur(f) && ((editing && f == focused) || m.session.FieldError(f) == validate.Date) {
			continue
		}
		if v := form.Display(f); v != in.Value() {
			in.SetValue(v)
		}
	}
}

func (m *registerWizardModel) dirty() bool {
	if m.session.Active() == domain.StepSRDetails {
		return false
	}
	for _, step := range []domain.Step{domain.StepCompany, domain.StepContract, domain.StepPayment} {
		for _, f := range validate.StepFields(step) {
			if m.session.Touched(f) {
				return true
			}
		}
	}
	return false
}

func (m *registerWizardModel) refreshReview() {
	if m.session.Active() != domain.StepSummary {
		return
	}
	form := m.session.Form()
	var rows []table.Row
	add := func(f domain.Field, v string) {
		if strings.TrimSpace(v) == "" {
			v = "-"
		}
		rows = append(rows, table.Row{m.text.field(f), v})
	}
	for _, f := range []domain.Field{
		domain.FieldCRNumber, domain.FieldOCCINumber, domain.FieldOCCIExpiry,
		domain.FieldCompanyName, domain.FieldDegree,
	} {
		add(f, form.Display(f))
	}
	add(domain.FieldIsSME, m.text.yesNo(form.IsSME))
	if form.IsSME {
		add(domain.FieldSMEType, form.SMEType)
	}
	add(domain.FieldIsRiyadaRegistered, m.text.yesNo(form.IsRiyadaRegistered))
	if form.IsRiyadaRegistered {
		add(domain.FieldRiyadaExpiry, form.Display(domain.FieldRiyadaExpiry))
	}
	add(domain.FieldYearsToRenew, form.Display(domain.FieldYearsToRenew))
	add(domain.FieldFees, form.Display(domain.FieldFees))
	for _, step := range []domain.Step{domain.StepContract, domain.StepPayment} {
		for _, f := range validate.StepFields(step) {
			v := form.Display(f)
			if f == domain.FieldBankCode {
				v = m.session.Banks().Name(form.BankCode, m.session.Lang)
			}
			add(f, v)
		}
	}
	m.review.SetRows(rows)
	m.review.SetHeight(len(rows) + 1)
}

func (m *registerWizardModel) View() string {
	var b strings.Builder

	title := lipgloss.JoinHorizontal(lipgloss.Center,
		titleBadgeStyle.Render("srw"),
		" "+headerStyle.Render(m.text.pick(entry{"company registration", "تسجيل الشركات"})),
	)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.subtitle()))
	b.WriteString("\n\n")
	b.WriteString(m.stepsHeader())
	b.WriteString("\n")

	content := ""
	switch m.session.Active() {
	case domain.StepCompany:
		content = m.viewCompany()
	case domain.StepContract, domain.StepPayment:
		content = m.viewFields(m.session.Active())
	case domain.StepSummary:
		content = m.viewSummary()
	case domain.StepSRDetails:
		content = m.viewDetails()
	}
	content += "\n\n" + m.viewActions()

	contentPanel := panelStyle
	if w := m.viewContentWidth(); w > 0 {
		contentPanel = contentPanel.Width(w)
	}
	if m.session.Lang.RightToLeft() {
		contentPanel = contentPanel.Align(lipgloss.Right)
	}
	b.WriteString(contentPanel.Render(content))
	b.WriteString("\n")

	if msg := m.text.notice(m.notice); msg != "" {
		b.WriteString(renderNotice(m.notice.Kind, msg))
		b.WriteString("\n")
	}
	if m.confirmQuit {
		b.WriteString(alertStyle.Render(errorStyle.Render(
			m.text.pick(entry{"Press Ctrl+C again to discard the form and quit.", "اضغط Ctrl+C مرة أخرى لتجاهل النموذج والخروج."}))))
		b.WriteString("\n")
	}

	helpPanel := helpPanelStyle
	if w := m.viewContentWidth(); w > 0 {
		helpPanel = helpPanel.Width(w)
	}
	helpBlock := helpPanel.Render(m.help.View(m.keys))

	body := b.String()
	spacer := ""
	if m.height > 0 {
		const pageVerticalPadding = 2
		const separatorLines = 2
		total := lipgloss.Height(body) + separatorLines + lipgloss.Height(helpBlock) + pageVerticalPadding
		if gap := m.height - total; gap > 0 {
			spacer = strings.Repeat("\n", gap)
		}
	}
	return pageStyle.Render(body+"\n\n"+spacer+helpBlock) + "\n"
}

func (m *registerWizardModel) subtitle() string {
	id := m.session.ID
	if len(id) > 8 {
		id = id[:8]
	}
	parts := []string{"session " + id}
	if m.input.Offline {
		parts = append(parts, "offline")
	} else if m.input.BaseURL != "" {
		parts = append(parts, m.input.BaseURL)
	}
	if m.bankSource == domain.BankSourceFallback {
		parts = append(parts, m.text.pick(entry{"built-in bank list", "قائمة البنوك المدمجة"}))
	}
	return strings.Join(parts, " · ")
}

func (m *registerWizardModel) viewContentWidth() int {
	if m.width <= 0 {
		return 0
	}
	contentWidth := m.width - 8
	if contentWidth < 52 {
		return 0
	}
	return contentWidth
}

func (m *registerWizardModel) stepsHeader() string {
	parts := make([]string, 0, domain.StepCount)
	for step := domain.StepCompany; step <= wizard.LastStep; step++ {
		label := m.text.step(step)
		switch {
		case step == m.session.Active():
			active := tabCurrentStyle
			if m.focusTabs {
				active = tabFocusedStyle
			}
			parts = append(parts, active.Render(label))
		case m.session.IsCompleted(step):
			parts = append(parts, tabDoneStyle.Render("✓ "+label))
		default:
			parts = append(parts, tabBaseStyle.Render(label))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Bottom, parts...)
	if m.width <= 0 {
		return row
	}
	gap := m.width - lipgloss.Width(row) - 4
	if gap <= 0 {
		return row
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, row, tabGapStyle.Render(strings.Repeat(" ", gap)))
}

func (m *registerWizardModel) renderInput(f domain.Field, description string) string {
	focused, editing := m.focusedField()
	isFocused := editing && focused == f
	in := m.inputs[f]
	if f.Identity() && m.session.CompanyValidated() {
		description = m.text.pick(entry{"Locked after validation, ctrl+e to edit", "مقفل بعد التحقق، ctrl+e للتعديل"})
	}
	return renderFieldBlock(isFocused, m.text.field(f), description,
		renderInputContainer(in.View(), isFocused), m.text.code(m.session.FieldError(f)))
}

func (m *registerWizardModel) viewCompany() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(m.text.pick(entry{"Company identity", "هوية الشركة"})))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.text.pick(entry{
		"Enter the CR and OCCI details, then validate them against the registry.",
		"أدخل بيانات السجل التجاري والغرفة ثم تحقق منها.",
	})))
	b.WriteString("\n\n")
	for _, f := range validate.IdentityFields() {
		b.WriteString(m.renderInput(f, ""))
		b.WriteString("\n")
	}
	if m.autofilling {
		b.WriteString(m.spinner.View() + " " + hintStyle.Render(m.text.pick(entry{"Looking up saved details", "جارٍ البحث عن البيانات المحفوظة"})))
		b.WriteString("\n")
	}
	if m.session.ValidatingCompany() {
		b.WriteString(m.spinner.View() + " " + hintStyle.Render(m.text.phase(wizard.PhaseValidating)))
		b.WriteString("\n")
	}
	if !m.session.CompanyValidated() {
		return strings.TrimRight(b.String(), "\n")
	}

	form := m.session.Form()
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(m.text.pick(entry{"Registry details", "بيانات السجل"})) + " " + renderStatusPill(m.text.pick(entry{"validated", "تم التحقق"})))
	b.WriteString("\n")
	lines := []string{
		m.describe(domain.FieldCompanyName, form.CompanyName),
		m.describe(domain.FieldDegree, form.Degree),
		m.describe(domain.FieldIsSME, m.text.yesNo(form.IsSME)),
	}
	if form.IsSME {
		lines = append(lines, m.describe(domain.FieldSMEType, form.SMEType))
	}
	lines = append(lines, m.describe(domain.FieldIsRiyadaRegistered, m.text.yesNo(form.IsRiyadaRegistered)))
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")

	if ex, ok := m.session.ExistingSR(); ok && ex.HasActiveSR {
		b.WriteString(warnStyle.Render(m.text.notice(wizard.Notice{Code: wizard.NoticeExistingSR, Detail: ex.IncidentNumber})))
		b.WriteString("\n")
		b.WriteString(hintStyle.Render(m.text.pick(entry{"ctrl+s opens it", "ctrl+s لعرضه"})))
		return b.String()
	}

	if m.session.Visible(domain.FieldRiyadaExpiry) {
		b.WriteString(m.renderInput(domain.FieldRiyadaExpiry, ""))
		b.WriteString("\n")
	}
	if m.session.Visible(domain.FieldYearsToRenew) {
		b.WriteString(m.renderInput(domain.FieldYearsToRenew, m.text.pick(entry{"1 or 2, ctrl+n toggles", "1 أو 2، ctrl+n للتبديل"})))
		b.WriteString("\n")
	}
	b.WriteString(m.describe(domain.FieldFees, form.Display(domain.FieldFees)))
	return b.String()
}

func (m *registerWizardModel) describe(f domain.Field, v string) string {
	if strings.TrimSpace(v) == "" {
		v = "-"
	}
	return hintStyle.Render(m.text.field(f)+": ") + v
}

func (m *registerWizardModel) viewFields(step domain.Step) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(m.text.step(step)))
	b.WriteString("\n\n")
	fields := validate.StepFields(step)
	for i, f := range fields {
		description := ""
		if f == domain.FieldBankCode {
			description = m.bankDescription()
		}
		b.WriteString(m.renderInput(f, description))
		if i < len(fields)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *registerWizardModel) bankDescription() string {
	form := m.session.Form()
	if code := strings.TrimSpace(form.BankCode); code != "" && m.session.Banks().Contains(code) {
		return m.session.Banks().Name(code, m.session.Lang)
	}
	return m.text.pick(entry{"Type a bank code, ctrl+n/ctrl+p browse the list", "اكتب رمز البنك، ctrl+n/ctrl+p لتصفح القائمة"})
}

func (m *registerWizardModel) viewSummary() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(m.text.step(domain.StepSummary)))
	b.WriteString("\n")
	b.WriteString(m.review.View())
	b.WriteString("\n\n")

	if m.submitting {
		b.WriteString(m.spinner.View() + " " + m.text.phase(m.phase.Phase))
		b.WriteString("\n")
		b.WriteString(m.progress.ViewAs(m.phase.Percent))
		return b.String()
	}

	b.WriteString(labelStyle.Render(m.text.pick(entry{"Human check", "التحقق البشري"})))
	b.WriteString("\n")
	if m.captcha.Verified() {
		b.WriteString(successStyle.Render("✓ " + m.text.pick(entry{"Verified", "تم التحقق"})))
		return b.String()
	}
	b.WriteString(strings.Join(m.captcha.Art(), "\n"))
	b.WriteString("\n")
	focused, editing := m.focusedField()
	isFocused := editing && focused == fieldCaptcha
	b.WriteString(renderFieldBlock(isFocused,
		m.text.pick(entry{"Code", "الرمز"}),
		m.text.pick(entry{"enter verifies, ctrl+r shows a new code", "enter للتحقق، ctrl+r لرمز جديد"}),
		renderInputContainer(m.inputs[fieldCaptcha].View(), isFocused), ""))
	return b.String()
}

func (m *registerWizardModel) viewDetails() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(m.text.step(domain.StepSRDetails)))
	if m.session.ExistingSRView() {
		b.WriteString(" " + renderStatusPill(m.text.pick(entry{"existing", "قائم"})))
	}
	b.WriteString("\n\n")
	if m.session.LoadingDetails() {
		b.WriteString(m.spinner.View() + " " + hintStyle.Render(m.text.pick(entry{"Loading service request", "جارٍ تحميل طلب الخدمة"})))
		return b.String()
	}
	d, ok := m.session.SRDetails()
	if !ok {
		b.WriteString(hintStyle.Render(m.text.pick(entry{"No service request details available.", "لا تتوفر تفاصيل لطلب الخدمة."})))
		return b.String()
	}
	row := func(label entry, v string) {
		if strings.TrimSpace(v) == "" {
			return
		}
		b.WriteString(hintStyle.Render(m.text.pick(label)+": ") + v + "\n")
	}
	row(entry{"Incident", "رقم الطلب"}, d.IncidentNumber)
	row(entry{"CR Number", "رقم السجل التجاري"}, d.CRNumber)
	row(entry{"Company", "الشركة"}, d.CompanyName)
	row(entry{"Status", "الحالة"}, d.StatusText())
	row(entry{"Payment", "الدفع"}, paymentBadge(m.text, d))
	if d.Fees != "" {
		row(entry{"Fees", "الرسوم"}, d.Fees+" OMR")
	}
	if url := d.ReportURL(m.input.ReportBaseURL); url != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(m.text.pick(entry{"Report", "التقرير"})))
		b.WriteString("\n")
		b.WriteString(url)
	}
	if d.NeedsPayment() {
		b.WriteString("\n\n")
		b.WriteString(warnStyle.Render(m.text.pick(entry{"Payment is required to complete this request.", "يلزم الدفع لإكمال هذا الطلب."})))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *registerWizardModel) viewActions() string {
	action := m.session.PrimaryAction()
	label := m.text.action(action)
	primary := buttonPrimaryStyle
	if m.busy() || m.session.LoadingDetails() {
		primary = buttonDisabledStyle
		label = m.spinner.View() + " " + label
	}
	parts := []string{primary.Render(label + "  ctrl+s")}
	if m.session.Active() > domain.StepCompany && !m.session.ExistingSRView() && m.session.Active() != domain.StepSRDetails {
		parts = append(parts, buttonStyle.Render(m.text.pick(entry{"Back", "رجوع"})+"  esc"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func renderNotice(kind wizard.NoticeKind, msg string) string {
	switch kind {
	case wizard.NoticeSuccess:
		return alertStyle.BorderForeground(successColor).Render(successStyle.Render(msg))
	case wizard.NoticeWarning:
		return alertStyle.BorderForeground(warningColor).Render(warnStyle.Render(msg))
	case wizard.NoticeError:
		return alertStyle.Render(errorStyle.Render(msg))
	default:
		return alertStyle.BorderForeground(accentColor).Render(hintStyle.Render(msg))
	}
}

func renderStatusPill(value string) string {
	return lipgloss.NewStyle().
		Foreground(textColor).
		Background(accentBgColor).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(0, 1).
		Bold(true).
		Render(strings.ToUpper(value))
}

func renderInputContainer(input string, focused bool) string {
	style := inputStyle
	if focused {
		style = inputFocusStyle
	}
	return style.Render(input)
}

func renderFieldBlock(focused bool, title, description, value, err string) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(title))
	if description != "" {
		b.WriteString("\n")
		b.WriteString(hintStyle.Render(description))
	}
	if value != "" {
		b.WriteString("\n")
		b.WriteString(value)
	}
	if err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(err))
	}
	style := fieldStyle
	if focused {
		style = fieldFocusStyle
	}
	return style.Render(b.String())
}
