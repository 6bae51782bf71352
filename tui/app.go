package tui

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/robertmeta/rover-cli/controller"
	"github.com/robertmeta/rover-cli/model"
)

const confirmationTTL = 2 * time.Second

// Controller is the set of actions the browser dispatches.
type Controller interface {
	Init(ctx context.Context) error
	SelectRover(ctx context.Context, rover string) error
	SelectDateMode(mode model.DateMode)
	SetCamera(fullName string)
	SetEarthDate(raw string)
	SetSol(raw string)
	Submit(ctx context.Context, form controller.Form) ([]model.Photo, error)
	SaveResult(index int) error
	Delete(position int) error
	Reset() error
	ShowFavorites()
	ShowSearch()
	StartCarousel() error
	StopCarousel()
	NextSlide()
	Dismiss()
	ClearConfirmation()
	Snapshot() controller.State
}

type field int

const (
	fieldRover field = iota
	fieldCamera
	fieldMode
	fieldDate
	fieldResults
	fieldCount
)

// App is the root Bubble Tea model.
// App renders a copy of the controller state; every change to that state
// goes through a controller method and comes back as a snapshot.
type App struct {
	ctrl     Controller
	ctx      context.Context
	logger   *log.Logger
	interval time.Duration

	state   controller.State
	focus   field
	cursor  int
	input   textinput.Model
	spinner spinner.Model
	help    help.Model

	loading    bool
	slideSeq   int
	confirmSeq int
	width      int
	height     int
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger. The browser owns the terminal, so the logger
// should write to a file.
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithCarouselInterval sets how long each slide is shown.
func WithCarouselInterval(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithContext sets the context passed to catalog requests.
func WithContext(ctx context.Context) Option {
	return func(a *App) {
		a.ctx = ctx
	}
}

// NewApp creates an App driving ctrl.
func NewApp(ctrl Controller, opts ...Option) App {
	ti := textinput.New()
	ti.CharLimit = 10
	ti.Width = 12

	s := spinner.New()
	s.Spinner = spinner.Dot

	a := App{
		ctrl:     ctrl,
		ctx:      context.Background(),
		logger:   log.New(io.Discard),
		interval: 3 * time.Second,
		state:    ctrl.Snapshot(),
		input:    ti,
		spinner:  s,
		help:     help.New(),
		loading:  true,
	}
	for _, opt := range opts {
		opt(&a)
	}
	a.syncInput()
	return a
}

// Init loads favorites and the rover list.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.load())
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case RoversLoaded:
		a.loading = false
		a.logError("failed to load rovers", msg.Err)
		a.apply(msg.State)
		return a, nil

	case RoverSelected:
		if errors.Is(msg.Err, controller.ErrStale) {
			// A newer selection is in flight and will report.
			return a, nil
		}
		a.loading = false
		a.logError("failed to load rover", msg.Err, "rover", msg.Rover)
		a.apply(msg.State)
		return a, nil

	case SearchDone:
		a.loading = false
		if errors.Is(msg.Err, controller.ErrStale) {
			return a, nil
		}
		a.apply(msg.State)
		if msg.Err == nil && len(a.state.Results) > 0 {
			a.cursor = 0
			a.setFocus(fieldResults)
		}
		return a, nil

	case FavoritesChanged:
		a.loading = false
		a.apply(msg.State)
		if a.state.Confirmation != "" {
			a.confirmSeq++
			return a, a.expire(a.confirmSeq)
		}
		return a, nil

	case SlideTick:
		if msg.Seq != a.slideSeq || !a.state.Carousel.Running {
			return a, nil
		}
		a.ctrl.NextSlide()
		a.apply(a.ctrl.Snapshot())
		return a, a.tick()

	case ConfirmationExpired:
		if msg.Seq == a.confirmSeq {
			a.ctrl.ClearConfirmation()
			a.apply(a.ctrl.Snapshot())
		}
		return a, nil
	}

	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	// Any key dismisses a notice or failure.
	if a.state.Notice != "" || a.state.Failure != "" {
		a.ctrl.Dismiss()
		a.apply(a.ctrl.Snapshot())
	}

	if key.Matches(msg, keys.Reset) {
		return a.reset()
	}

	if a.state.View == controller.FavoritesView {
		return a.handleFavoritesKey(msg)
	}
	return a.handleSearchKey(msg)
}

func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Next):
		cmd := a.setFocus((a.focus + 1) % fieldCount)
		return a, cmd

	case key.Matches(msg, keys.Prev):
		cmd := a.setFocus((a.focus + fieldCount - 1) % fieldCount)
		return a, cmd

	case key.Matches(msg, keys.Submit):
		return a.submit()
	}

	if a.focus == fieldDate {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		a.pushInput()
		return a, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Favorites):
		a.ctrl.ShowFavorites()
		a.cursor = 0
		a.input.Blur()
		a.apply(a.ctrl.Snapshot())
		return a, nil

	case key.Matches(msg, keys.Left):
		return a.cycle(-1)

	case key.Matches(msg, keys.Right):
		return a.cycle(1)

	case key.Matches(msg, keys.Up):
		if a.focus == fieldResults {
			a.moveCursor(-1)
			return a, nil
		}
		cmd := a.setFocus((a.focus + fieldCount - 1) % fieldCount)
		return a, cmd

	case key.Matches(msg, keys.Down):
		if a.focus == fieldResults {
			a.moveCursor(1)
			return a, nil
		}
		cmd := a.setFocus((a.focus + 1) % fieldCount)
		return a, cmd

	case key.Matches(msg, keys.Save):
		if len(a.state.Results) == 0 {
			return a, nil
		}
		return a, a.save(a.cursor)
	}

	return a, nil
}

func (a App) handleFavoritesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Back):
		a.ctrl.StopCarousel()
		a.ctrl.ShowSearch()
		a.slideSeq++
		a.cursor = 0
		a.apply(a.ctrl.Snapshot())
		return a, nil

	case key.Matches(msg, keys.Up):
		a.moveCursor(-1)
		return a, nil

	case key.Matches(msg, keys.Down):
		a.moveCursor(1)
		return a, nil

	case key.Matches(msg, keys.Delete):
		if len(a.state.Favorites) == 0 {
			return a, nil
		}
		return a, a.delete(a.cursor)

	case key.Matches(msg, keys.Carousel):
		a.slideSeq++
		if a.state.Carousel.Running {
			a.ctrl.StopCarousel()
			a.apply(a.ctrl.Snapshot())
			return a, nil
		}
		if err := a.ctrl.StartCarousel(); err != nil {
			a.logger.Debug("carousel not started", "err", err)
			return a, nil
		}
		a.apply(a.ctrl.Snapshot())
		return a, a.tick()

	case key.Matches(msg, keys.Slide):
		a.ctrl.NextSlide()
		a.apply(a.ctrl.Snapshot())
		return a, nil
	}

	return a, nil
}

// cycle moves the focused option field by delta.
func (a App) cycle(delta int) (tea.Model, tea.Cmd) {
	switch a.focus {
	case fieldRover:
		next, ok := step(a.state.Rovers, a.state.Form.Rover, delta)
		if !ok {
			return a, nil
		}
		a.state.Form.Rover = next
		a.state.Form.Camera = ""
		a.state.Cameras = nil
		a.loading = true
		return a, a.selectRover(next)

	case fieldCamera:
		options := append([]string{""}, a.state.Cameras...)
		next, _ := step(options, a.state.Form.Camera, delta)
		a.ctrl.SetCamera(next)
		a.apply(a.ctrl.Snapshot())

	case fieldMode:
		mode := model.DateSol
		if a.state.Form.Mode == model.DateSol {
			mode = model.DateEarth
		}
		a.ctrl.SelectDateMode(mode)
		a.apply(a.ctrl.Snapshot())
	}
	return a, nil
}

// step returns the option delta places from current, wrapping around.
// A current value not in options starts from the first or last option.
func step(options []string, current string, delta int) (string, bool) {
	n := len(options)
	if n == 0 {
		return "", false
	}
	i := -1
	for j, o := range options {
		if o == current {
			i = j
			break
		}
	}
	if i < 0 {
		if delta < 0 {
			return options[n-1], true
		}
		return options[0], true
	}
	return options[((i+delta)%n+n)%n], true
}

func (a *App) setFocus(f field) tea.Cmd {
	a.focus = f
	if f == fieldDate {
		return a.input.Focus()
	}
	a.input.Blur()
	return nil
}

func (a *App) moveCursor(delta int) {
	a.cursor += delta
	a.clampCursor()
}

func (a *App) clampCursor() {
	n := len(a.visible())
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

// visible returns the list the cursor moves over.
func (a App) visible() []model.Photo {
	if a.state.View == controller.FavoritesView {
		return a.state.Favorites
	}
	return a.state.Results
}

// apply replaces the rendered state.
func (a *App) apply(s controller.State) {
	a.state = s
	a.syncInput()
	a.clampCursor()
}

// syncInput shows the form value of the active date mode.
func (a *App) syncInput() {
	if a.state.Form.Mode == model.DateSol {
		a.input.Placeholder = "sol"
		a.input.SetValue(a.state.Form.Sol)
		return
	}
	a.input.Placeholder = model.DateLayout
	a.input.SetValue(a.state.Form.EarthDate)
}

// pushInput copies the text input into the controller form.
func (a *App) pushInput() {
	if a.state.Form.Mode == model.DateSol {
		a.ctrl.SetSol(a.input.Value())
	} else {
		a.ctrl.SetEarthDate(a.input.Value())
	}
	a.state = a.ctrl.Snapshot()
}

func (a App) submit() (tea.Model, tea.Cmd) {
	a.pushInput()
	a.loading = true
	ctrl, ctx, form := a.ctrl, a.ctx, a.state.Form
	return a, func() tea.Msg {
		_, err := ctrl.Submit(ctx, form)
		return SearchDone{State: ctrl.Snapshot(), Err: err}
	}
}

func (a App) reset() (tea.Model, tea.Cmd) {
	a.slideSeq++
	a.cursor = 0
	a.setFocus(fieldRover)
	a.loading = true
	ctrl := a.ctrl
	return a, func() tea.Msg {
		err := ctrl.Reset()
		return FavoritesChanged{State: ctrl.Snapshot(), Err: err}
	}
}

func (a App) load() tea.Cmd {
	ctrl, ctx := a.ctrl, a.ctx
	return func() tea.Msg {
		err := ctrl.Init(ctx)
		return RoversLoaded{State: ctrl.Snapshot(), Err: err}
	}
}

func (a App) selectRover(rover string) tea.Cmd {
	ctrl, ctx := a.ctrl, a.ctx
	return func() tea.Msg {
		err := ctrl.SelectRover(ctx, rover)
		return RoverSelected{Rover: rover, State: ctrl.Snapshot(), Err: err}
	}
}

func (a App) save(index int) tea.Cmd {
	ctrl := a.ctrl
	return func() tea.Msg {
		err := ctrl.SaveResult(index)
		return FavoritesChanged{State: ctrl.Snapshot(), Err: err}
	}
}

func (a App) delete(position int) tea.Cmd {
	ctrl := a.ctrl
	return func() tea.Msg {
		err := ctrl.Delete(position)
		return FavoritesChanged{State: ctrl.Snapshot(), Err: err}
	}
}

func (a App) tick() tea.Cmd {
	seq := a.slideSeq
	return tea.Tick(a.interval, func(time.Time) tea.Msg {
		return SlideTick{Seq: seq}
	})
}

func (a App) expire(seq int) tea.Cmd {
	return tea.Tick(confirmationTTL, func(time.Time) tea.Msg {
		return ConfirmationExpired{Seq: seq}
	})
}

func (a App) logError(msg string, err error, keyvals ...interface{}) {
	if err == nil {
		return
	}
	a.logger.Warn(msg, append(keyvals, "err", err)...)
}

// State returns the rendered state (for testing).
func (a App) State() controller.State {
	return a.state
}

// Cursor returns the list cursor (for testing).
func (a App) Cursor() int {
	return a.cursor
}
