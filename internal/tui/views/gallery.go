package views

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/shenghan/artmap/internal/engine/geo"
	"github.com/shenghan/artmap/internal/engine/museum"
	"github.com/shenghan/artmap/internal/engine/sampler"
	"github.com/shenghan/artmap/internal/engine/storage"
	"github.com/shenghan/artmap/internal/model"
	"github.com/shenghan/artmap/internal/tui/styles"
)

// sessionState holds data shared between the sampling goroutines and the
// TUI. Lives behind a pointer so it survives bubbletea's value copies.
type sessionState struct {
	mu      sync.Mutex
	session *sampler.Session
	store   *storage.Store
	logFile *os.File
	cancel  context.CancelFunc
	notes   []string
}

// GalleryModel drives a live sampling session: pull pages, watch the
// scope ladder escalate, land in the explorer when done.
type GalleryModel struct {
	params      model.SessionParams
	stats       *sampler.Stats
	startTime   time.Time
	place       string
	started     bool
	loading     bool
	done        bool
	confirmQuit bool
	err         error
	dbPath      string
	logPath     string
	artworks    []model.Artwork
	pages       int
	width       int
	height      int
	shared      *sessionState
}

// Messages
type galleryTickMsg time.Time

type sessionReadyMsg struct {
	Place string
	Err   error
}

type pageMsg struct {
	Artworks []model.Artwork
	OK       bool
}

func NewGalleryModel(msg StartSessionMsg) GalleryModel {
	m := GalleryModel{
		startTime: time.Now(),
		stats:     &sampler.Stats{},
		shared:    &sessionState{},
	}

	// Parse params
	if msg.Mode == modePlace {
		m.params.Query = msg.Place
	} else {
		m.params.Lat, _ = strconv.ParseFloat(msg.Lat, 64)
		m.params.Lng, _ = strconv.ParseFloat(msg.Lng, 64)
	}
	m.params.Source = msg.Source
	m.params.PageSize, _ = strconv.Atoi(msg.PageSize)
	if m.params.PageSize <= 0 {
		m.params.PageSize = 6
	}
	m.params.MaxPoolSize = 96
	m.params.StreetView = msg.StreetView
	m.params.LimitSize = msg.Carousel
	m.params.PublicDomainOnly = msg.PublicDomain
	if msg.From != "" {
		m.params.ByDate = true
		m.params.From, _ = strconv.Atoi(msg.From)
		m.params.To, _ = strconv.Atoi(msg.To)
	}

	// Setup output paths
	ts := time.Now().Format("20060102_150405")
	baseName := fmt.Sprintf("artmap_%s", ts)
	outDir := msg.Output
	os.MkdirAll(outDir, 0755)
	m.dbPath = filepath.Join(outDir, baseName+".db")
	m.logPath = filepath.Join(outDir, baseName+".log")
	m.params.DBPath = m.dbPath

	return m
}

func (m GalleryModel) Init() tea.Cmd {
	return tea.Batch(
		m.startSession(),
		galleryTickCmd(),
	)
}

func galleryTickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return galleryTickMsg(t)
	})
}

func (m GalleryModel) startSession() tea.Cmd {
	shared := m.shared
	params := m.params
	stats := m.stats
	dbPath := m.dbPath
	logPath := m.logPath

	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())

		godotenv.Load()
		token := os.Getenv("ARTMAP_API_TOKEN")
		if token == "" {
			token = os.Getenv("ARTIC_API_TOKEN")
		}

		geocoder := geo.NewGeocoder()
		var place *model.Place
		if params.IsCoordMode() {
			place = &model.Place{Lat: params.Lat, Lng: params.Lng}
		} else {
			var err error
			place, err = geocoder.Geocode(ctx, params.Query)
			if err != nil {
				cancel()
				return sessionReadyMsg{Err: fmt.Errorf("geocoding %q: %w", params.Query, err)}
			}
		}

		store, err := storage.NewStore(dbPath)
		if err != nil {
			cancel()
			return sessionReadyMsg{Err: err}
		}

		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			store.Close()
			cancel()
			return sessionReadyMsg{Err: err}
		}
		logger := log.New(logFile, "", log.LstdFlags)

		client := museum.NewClient(token, params.ProxyURL)
		var source museum.Source
		if params.Source == "met" {
			source = museum.NewMet(client)
		} else {
			source = museum.NewAIC(client)
		}

		scopes := model.MapScopes()
		if params.StreetView {
			scopes = model.StreetViewScopes()
		}

		session := sampler.NewSession(sampler.Config{
			Scopes:           scopes,
			PageSize:         params.PageSize,
			MaxPoolSize:      params.MaxPoolSize,
			LimitSize:        params.LimitSize,
			ByDate:           params.ByDate,
			From:             params.From,
			To:               params.To,
			PublicDomainOnly: params.PublicDomainOnly,
			Source:           source,
			Regions:          geocoder,
			Notifier: sampler.NotifierFunc(func(kind, msg string) {
				shared.addNote(fmt.Sprintf("[%s] %s", kind, msg))
			}),
			Logger: logger,
			Stats:  stats,
		})

		if err := session.Start(ctx, place); err != nil {
			logFile.Close()
			store.Close()
			cancel()
			return sessionReadyMsg{Err: err}
		}

		shared.mu.Lock()
		shared.session = session
		shared.store = store
		shared.logFile = logFile
		shared.cancel = cancel
		shared.mu.Unlock()

		name := place.DisplayName
		if name == "" {
			name = fmt.Sprintf("%.4f, %.4f", place.Lat, place.Lng)
		}
		return sessionReadyMsg{Place: name}
	}
}

func (m GalleryModel) pullPage() tea.Cmd {
	shared := m.shared
	return func() tea.Msg {
		shared.mu.Lock()
		session := shared.session
		store := shared.store
		shared.mu.Unlock()
		if session == nil {
			return pageMsg{OK: false}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		page, ok := session.NextPage(ctx)
		if ok && len(page) > 0 && store != nil {
			store.InsertBatch(page)
		}
		return pageMsg{Artworks: page, OK: ok}
	}
}

func (m GalleryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case sessionReadyMsg:
		if msg.Err != nil {
			m.err = msg.Err
			m.done = true
			return m, nil
		}
		m.started = true
		m.place = msg.Place
		m.loading = true
		return m, m.pullPage()

	case pageMsg:
		m.loading = false
		if msg.OK {
			m.pages++
			if m.params.LimitSize {
				m.artworks = msg.Artworks
			} else {
				m.artworks = append(m.artworks, msg.Artworks...)
			}
		}
		if session := m.shared.getSession(); session != nil && session.IsEnd() {
			m.done = true
			m.shared.closeAll()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shared.closeAll()
			return m, tea.Quit
		case " ", "space", "n":
			if m.started && !m.done && !m.loading {
				m.loading = true
				m.confirmQuit = false
				return m, m.pullPage()
			}
		case "esc":
			if m.done {
				return m, func() tea.Msg {
					return NavigateToExplorer{DBPath: m.dbPath}
				}
			}
			if m.confirmQuit {
				// Second esc: stop the session and go home
				m.shared.closeAll()
				return m, func() tea.Msg { return NavigateToHome{} }
			}
			m.confirmQuit = true
			return m, nil
		case "enter":
			if m.done || (m.started && m.pages > 0) {
				m.shared.closeAll()
				return m, func() tea.Msg {
					return NavigateToExplorer{DBPath: m.dbPath}
				}
			}
			if m.confirmQuit {
				m.confirmQuit = false
				return m, nil
			}
		default:
			if m.confirmQuit {
				m.confirmQuit = false
			}
		}

	case galleryTickMsg:
		if m.done {
			return m, nil
		}
		return m, galleryTickCmd()
	}

	return m, nil
}

func (m GalleryModel) View() string {
	var b strings.Builder

	where := m.place
	if where == "" {
		where = m.params.Query
	}
	b.WriteString(styles.Title.Render(fmt.Sprintf("Sampling around %s", where)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc back"))
		return b.String()
	}

	// Stats box
	statsBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(30).
		Render(m.renderStats())
	b.WriteString(statsBox)
	b.WriteString("\n\n")

	// Artwork list
	if len(m.artworks) == 0 && m.loading {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Fetching artworks..."))
		b.WriteString("\n")
	}

	titleStyle := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)
	metaStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	regionStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	visible := m.artworks
	maxRows := m.height - 18
	if maxRows < 4 {
		maxRows = 4
	}
	if len(visible) > maxRows {
		visible = visible[len(visible)-maxRows:]
	}
	for _, art := range visible {
		line := titleStyle.Render(truncate(art.Title, 40))
		if art.ArtistDisplay != "" {
			artist := strings.SplitN(art.ArtistDisplay, "\n", 2)[0]
			line += metaStyle.Render(" — " + truncate(artist, 30))
		}
		if art.DateDisplay != "" {
			line += metaStyle.Render(", " + art.DateDisplay)
		}
		if art.Region != "" {
			line += regionStyle.Render("  [" + art.Region + "]")
		}
		b.WriteString("  " + line + "\n")
	}

	// Notes from the engine (unresolvable regions, fetch failures)
	for _, note := range m.shared.lastNotes(3) {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Render("  " + note))
		b.WriteString("\n")
	}

	b.WriteString("\n")

	// Status
	switch {
	case m.done:
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Bold(true).
			Render(fmt.Sprintf("All regions exhausted — %d artworks", len(m.artworks))))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).
			Render(fmt.Sprintf("Database: %s", m.dbPath)))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("enter explore results • esc back"))
	case m.confirmQuit:
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop the session"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	case m.loading:
		b.WriteString(styles.StatusBar.Render("fetching... • esc cancel • ctrl+c quit"))
	case !m.started:
		b.WriteString(styles.StatusBar.Render("resolving place... • esc cancel"))
	default:
		b.WriteString(styles.StatusBar.Render("space next page • enter explore • esc stop"))
	}

	return b.String()
}

func (m GalleryModel) renderStats() string {
	var sb strings.Builder
	elapsed := time.Since(m.startTime).Truncate(time.Second)

	statLabel := lipgloss.NewStyle().Foreground(styles.Muted).Width(13)
	statVal := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)

	row := func(label string, value string) {
		sb.WriteString(statLabel.Render(label))
		sb.WriteString(statVal.Render(value))
		sb.WriteString("\n")
	}

	if session := m.shared.getSession(); session != nil {
		row("Scope:", session.ActiveScope().String())
	}
	row("Pages:", fmt.Sprintf("%d", m.pages))
	row("Resolved:", fmt.Sprintf("%d", m.stats.Resolved.Load()))

	skipped := m.stats.Skipped.Load()
	skipStyle := statVal
	if skipped > 0 {
		skipStyle = lipgloss.NewStyle().Foreground(styles.Warning).Bold(true)
	}
	sb.WriteString(statLabel.Render("Skipped:"))
	sb.WriteString(skipStyle.Render(fmt.Sprintf("%d", skipped)))
	sb.WriteString("\n")

	if esc := m.stats.Escalations.Load(); esc > 0 {
		row("Escalations:", fmt.Sprintf("%d", esc))
	}
	row("Elapsed:", elapsed.String())

	return sb.String()
}

func (s *sessionState) getSession() *sampler.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *sessionState) addNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, note)
}

func (s *sessionState) lastNotes(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.notes) <= n {
		return append([]string(nil), s.notes...)
	}
	return append([]string(nil), s.notes[len(s.notes)-n:]...)
}

func (s *sessionState) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
	if s.store != nil {
		s.store.Close()
		s.store = nil
	}
}

// NavigateToExplorer signals transition to explorer view.
type NavigateToExplorer struct {
	DBPath string
}
