package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/olivier-w/bubblewave/internal/media"
)

// Choice is what the picker returns.
type Choice struct {
	Kind      string // "mic", "speech" or "file"
	Path      string // set for "file"
	Cancelled bool
}

type pickItem struct {
	title string
	desc  string
	kind  string
	path  string
}

func (i pickItem) Title() string       { return i.title }
func (i pickItem) Description() string { return i.desc }
func (i pickItem) FilterValue() string { return i.title }

// PickerModel lets the user choose what to visualize: a live input or
// an audio file or playlist from dir.
type PickerModel struct {
	list   list.Model
	result *Choice
	err    error
}

// NewPicker lists the live inputs followed by the playable entries of dir.
func NewPicker(dir string) PickerModel {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return PickerModel{err: fmt.Errorf("cannot read directory: %w", err)}
	}

	items := []list.Item{
		pickItem{title: "Microphone", desc: "visualize the default input device", kind: "mic"},
		pickItem{title: "Speech", desc: "visualize speech loudness", kind: "speech"},
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !media.IsSupportedExt(ext) && !media.IsPlaylistExt(ext) {
			continue
		}
		items = append(items, pickItem{
			title: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			desc:  ext,
			kind:  "file",
			path:  filepath.Join(dir, e.Name()),
		})
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
		BorderLeftForeground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}).
		BorderLeftForeground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	l := list.New(items, delegate, 80, 20)
	l.Title = "bubblewave"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = headerStyle

	return PickerModel{list: l}
}

// Err returns the initialization error, if any.
func (m PickerModel) Err() error { return m.err }

// Result returns the choice after the program finishes.
func (m PickerModel) Result() Choice {
	if m.result != nil {
		return *m.result
	}
	return Choice{Cancelled: true}
}

func (m PickerModel) Init() tea.Cmd {
	if m.err != nil {
		return tea.Quit
	}
	return tea.SetWindowTitle("bubblewave")
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Don't intercept keys when filtering
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(pickItem); ok {
				m.result = &Choice{Kind: item.kind, Path: item.path}
				return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
			}
		case "q", "esc", "ctrl+c":
			m.result = &Choice{Cancelled: true}
			return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
		}

	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m PickerModel) View() string {
	if m.err != nil {
		return ""
	}
	return m.list.View()
}
