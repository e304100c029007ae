package views

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shenghan/artmap/internal/engine/geo"
	"github.com/shenghan/artmap/internal/tui/styles"
)

type searchMode int

const (
	modePlace searchMode = iota
	modeCoords
)

// Field indices — fieldMode, fieldSource and the toggles are virtual
// fields (not textinputs).
const (
	fieldMode = iota
	fieldPlace
	fieldLat
	fieldLng
	fieldSource
	fieldPageSize
	fieldFrom
	fieldTo
	fieldStreetView
	fieldCarousel
	fieldPublicDomain
	fieldOutput
	fieldCount
)

// previewDebounce delays place lookups while the user is still typing.
const previewDebounce = 500 * time.Millisecond

type SearchModel struct {
	inputs  []textinput.Model
	mode    searchMode
	source  string // "aic" or "met"
	street  bool
	loop    bool
	pdOnly  bool
	focused int
	err     string

	previewSeq  int
	previewName string
	previewErr  string
}

type placeDebounceMsg struct {
	seq int
}

type placePreviewMsg struct {
	seq  int
	name string
	err  string
}

func NewSearchModel() SearchModel {
	inputs := make([]textinput.Model, fieldCount)

	inputs[fieldMode] = textinput.New() // placeholder, never used
	inputs[fieldPlace] = newInput("wicker park chicago", "", 50)
	inputs[fieldLat] = newInput("41.9088", "", 15)
	inputs[fieldLng] = newInput("-87.6796", "", 15)
	inputs[fieldSource] = textinput.New() // virtual
	inputs[fieldPageSize] = newInput("6", "", 5)
	inputs[fieldFrom] = newInput("optional: 1850", "", 10)
	inputs[fieldTo] = newInput("optional: 1900", "", 10)
	inputs[fieldStreetView] = textinput.New()   // virtual
	inputs[fieldCarousel] = textinput.New()     // virtual
	inputs[fieldPublicDomain] = textinput.New() // virtual
	inputs[fieldOutput] = newInput("./sessions", "", 50)

	return SearchModel{
		inputs:  inputs,
		mode:    modePlace,
		source:  "aic",
		focused: fieldMode,
	}
}

func newInput(placeholder, value string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 100
	if width > 0 {
		ti.Width = width
	}
	if value != "" {
		ti.SetValue(value)
	}
	return ti
}

func isVirtual(idx int) bool {
	switch idx {
	case fieldMode, fieldSource, fieldStreetView, fieldCarousel, fieldPublicDomain:
		return true
	}
	return false
}

func (m SearchModel) Init() tea.Cmd {
	return nil
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case placeDebounceMsg:
		if msg.seq != m.previewSeq {
			return m, nil
		}
		query := strings.TrimSpace(m.inputs[fieldPlace].Value())
		if query == "" {
			return m, nil
		}
		seq := msg.seq
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
			defer cancel()
			place, err := geo.NewGeocoder().Geocode(ctx, query)
			if err != nil {
				return placePreviewMsg{seq: seq, err: err.Error()}
			}
			return placePreviewMsg{seq: seq, name: place.DisplayName}
		}

	case placePreviewMsg:
		if msg.seq != m.previewSeq {
			return m, nil
		}
		m.previewName = msg.name
		m.previewErr = msg.err
		return m, nil

	case tea.KeyMsg:
		key := msg.String()

		switch key {
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }

		case "up":
			m.err = ""
			return m, m.focusPrev()

		case "down", "tab":
			m.err = ""
			return m, m.focusNext()

		case "shift+tab":
			m.err = ""
			return m, m.focusPrev()

		case "enter":
			if cmd := m.submit(); cmd != nil {
				return m, cmd
			}

		case "left", "right":
			if m.toggleVirtual(key == "right") {
				return m, nil
			}
		}
	}

	// Update focused textinput (skip virtual fields)
	var cmd tea.Cmd
	if !isVirtual(m.focused) && m.focused >= 0 && m.focused < fieldCount {
		before := m.inputs[m.focused].Value()
		m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)

		// Debounced place preview while typing
		if m.focused == fieldPlace && m.inputs[fieldPlace].Value() != before {
			m.previewSeq++
			m.previewName = ""
			m.previewErr = ""
			seq := m.previewSeq
			debounce := tea.Tick(previewDebounce, func(time.Time) tea.Msg {
				return placeDebounceMsg{seq: seq}
			})
			return m, tea.Batch(cmd, debounce)
		}
	}

	return m, cmd
}

// toggleVirtual flips the focused selector; reports whether one was focused.
func (m *SearchModel) toggleVirtual(forward bool) bool {
	switch m.focused {
	case fieldMode:
		if forward {
			m.mode = modeCoords
		} else {
			m.mode = modePlace
		}
	case fieldSource:
		if forward {
			m.source = "met"
		} else {
			m.source = "aic"
		}
	case fieldStreetView:
		m.street = forward
	case fieldCarousel:
		m.loop = forward
	case fieldPublicDomain:
		m.pdOnly = forward
	default:
		return false
	}
	return true
}

func (m *SearchModel) focusNext() tea.Cmd {
	if !isVirtual(m.focused) {
		m.inputs[m.focused].Blur()
	}
	m.focused++
	m.focused = m.skipField(m.focused, 1)
	if m.focused >= fieldCount {
		m.focused = fieldMode
	}
	if isVirtual(m.focused) {
		return nil
	}
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

func (m *SearchModel) focusPrev() tea.Cmd {
	if !isVirtual(m.focused) {
		m.inputs[m.focused].Blur()
	}
	m.focused--
	m.focused = m.skipField(m.focused, -1)
	if m.focused < 0 {
		m.focused = fieldOutput
		m.inputs[m.focused].Focus()
		return textinput.Blink
	}
	if isVirtual(m.focused) {
		return nil
	}
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

func (m *SearchModel) skipField(idx, dir int) int {
	for idx > fieldMode && idx < fieldCount {
		if m.mode == modePlace && (idx == fieldLat || idx == fieldLng) {
			idx += dir
			continue
		}
		if m.mode == modeCoords && idx == fieldPlace {
			idx += dir
			continue
		}
		break
	}
	return idx
}

func (m *SearchModel) submit() tea.Cmd {
	output := strings.TrimSpace(m.inputs[fieldOutput].Value())
	if output == "" {
		m.err = "Output directory is required"
		return nil
	}

	var place, lat, lng string
	if m.mode == modePlace {
		place = strings.TrimSpace(m.inputs[fieldPlace].Value())
		if place == "" {
			m.err = "Place is required"
			return nil
		}
	} else {
		lat = strings.TrimSpace(m.inputs[fieldLat].Value())
		lng = strings.TrimSpace(m.inputs[fieldLng].Value())
		if lat == "" || lng == "" {
			m.err = "Lat and Lng are required"
			return nil
		}
		if _, err := strconv.ParseFloat(lat, 64); err != nil {
			m.err = "Lat must be a number"
			return nil
		}
		if _, err := strconv.ParseFloat(lng, 64); err != nil {
			m.err = "Lng must be a number"
			return nil
		}
	}

	pageStr := strings.TrimSpace(m.inputs[fieldPageSize].Value())
	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p < 1 {
			m.err = "Page size must be a positive number"
			return nil
		}
	}

	fromStr := strings.TrimSpace(m.inputs[fieldFrom].Value())
	toStr := strings.TrimSpace(m.inputs[fieldTo].Value())
	if (fromStr == "") != (toStr == "") {
		m.err = "Set both From and To years, or neither"
		return nil
	}
	if fromStr != "" {
		from, err1 := strconv.Atoi(fromStr)
		to, err2 := strconv.Atoi(toStr)
		if err1 != nil || err2 != nil {
			m.err = "Years must be numbers"
			return nil
		}
		if from > to {
			m.err = "From must not exceed To"
			return nil
		}
	}

	return func() tea.Msg {
		return StartSessionMsg{
			Mode:         m.mode,
			Place:        place,
			Lat:          lat,
			Lng:          lng,
			Source:       m.source,
			PageSize:     pageStr,
			From:         fromStr,
			To:           toStr,
			StreetView:   m.street,
			Carousel:     m.loop,
			PublicDomain: m.pdOnly,
			Output:       output,
		}
	}
}

func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("New Session") + "\n\n")

	b.WriteString(m.renderSelector("Mode:", fieldMode,
		[]string{"Place", "Coordinates"}, int(m.mode)))
	b.WriteString("\n")

	if m.mode == modePlace {
		b.WriteString(m.renderField("Place:", fieldPlace))
		if m.previewName != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Italic(true).
				Render("  → "+m.previewName) + "\n")
		} else if m.previewErr != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
				Render("  → "+m.previewErr) + "\n")
		}
	} else {
		b.WriteString(m.renderField("Latitude:", fieldLat))
		b.WriteString(m.renderField("Longitude:", fieldLng))
	}

	b.WriteString("\n")
	sourceIdx := 0
	if m.source == "met" {
		sourceIdx = 1
	}
	b.WriteString(m.renderSelector("Source:", fieldSource,
		[]string{"Art Institute", "The Met"}, sourceIdx))
	b.WriteString(m.renderField("Page size:", fieldPageSize))
	b.WriteString(m.renderField("From year:", fieldFrom))
	b.WriteString(m.renderField("To year:", fieldTo))

	b.WriteString("\n")
	b.WriteString(m.renderToggle("Street view:", fieldStreetView, m.street))
	b.WriteString(m.renderToggle("Carousel:", fieldCarousel, m.loop))
	b.WriteString(m.renderToggle("Public domain:", fieldPublicDomain, m.pdOnly))

	b.WriteString("\n")
	b.WriteString(m.renderField("Output:", fieldOutput))

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render("  " + m.err))
	}

	b.WriteString("\n\n")
	b.WriteString(styles.StatusBar.Render("enter start • tab next • ←→ toggle • esc back"))

	return styles.Border.Render(b.String())
}

func (m SearchModel) renderSelector(label string, idx int, options []string, selected int) string {
	l := styles.Label.Render(label)

	active := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	inactive := lipgloss.NewStyle().Foreground(styles.Muted)

	parts := make([]string, len(options))
	for i, opt := range options {
		if i == selected {
			parts[i] = active.Render("< " + opt + " >")
		} else {
			parts[i] = inactive.Render(opt)
		}
	}

	line := fmt.Sprintf("%s  %s", l, strings.Join(parts, "   "))
	if m.focused == idx {
		line += lipgloss.NewStyle().Foreground(styles.Secondary).Render(" ←→")
	}
	return line + "\n"
}

func (m SearchModel) renderToggle(label string, idx int, on bool) string {
	sel := 0
	if on {
		sel = 1
	}
	return m.renderSelector(label, idx, []string{"off", "on"}, sel)
}

func (m SearchModel) renderField(label string, idx int) string {
	l := styles.Label.Render(label)
	v := m.inputs[idx].View()
	return fmt.Sprintf("%s %s\n", l, v)
}

// Messages
type NavigateToHome struct{}

type StartSessionMsg struct {
	Mode         searchMode
	Place        string
	Lat          string
	Lng          string
	Source       string
	PageSize     string
	From         string
	To           string
	StreetView   bool
	Carousel     bool
	PublicDomain bool
	Output       string
}
