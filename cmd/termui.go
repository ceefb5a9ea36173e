package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// AppSettings holds the user configurable settings of the terminal UI.
type AppSettings struct {
	Limit        int    // page limit, 0 means whole book
	OutputFolder string // folder for merged PDFs
	Parallel     bool   // download multiple books concurrently
	ClearCache   bool   // wipe browser profiles before downloading
}

var defaultSettings = AppSettings{
	Limit:        0,
	OutputFolder: "output",
	Parallel:     false,
	ClearCache:   false,
}

// uiModel is the state of the terminal UI.
type uiModel struct {
	choices        []string
	cursor         int
	selected       bool
	downloadType   string // "single" or "multi"
	urls           string
	settings       AppSettings
	settingsMode   bool
	settingCursor  int
	settingOptions []string
	editingValue   bool
	editValue      string
}

func initialModel() uiModel {
	return uiModel{
		choices: []string{
			"Download a single book",
			"Download multiple books",
			"Settings",
			"Quit",
		},
		settings: defaultSettings,
		settingOptions: []string{
			"Page limit",
			"Output folder",
			"Parallel downloads",
			"Clear browser cache first",
			"Back to main menu",
		},
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A49FA5"))

	settingLabelStyle = lipgloss.NewStyle().
				Width(26).
				Foreground(lipgloss.Color("#7D56F4"))

	settingValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205"))
)

func (m uiModel) Init() tea.Cmd {
	return nil
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if !m.selected && !m.settingsMode {
			return m, tea.Quit
		}
	case "up", "k":
		if !m.selected && !m.settingsMode && m.cursor > 0 {
			m.cursor--
		} else if m.settingsMode && !m.editingValue && m.settingCursor > 0 {
			m.settingCursor--
		}
		return m, nil
	case "down", "j":
		if !m.selected && !m.settingsMode && m.cursor < len(m.choices)-1 {
			m.cursor++
		} else if m.settingsMode && !m.editingValue && m.settingCursor < len(m.settingOptions)-1 {
			m.settingCursor++
		}
		return m, nil
	case "esc":
		if m.settingsMode && m.editingValue {
			m.editingValue = false
		} else if m.settingsMode {
			m.settingsMode = false
		} else if m.selected {
			m.selected = false
			m.urls = ""
		}
		return m, nil
	case "enter":
		return m.handleEnter()
	case "backspace":
		if m.selected && len(m.urls) > 0 {
			m.urls = m.urls[:len(m.urls)-1]
		} else if m.settingsMode && m.editingValue && len(m.editValue) > 0 {
			m.editValue = m.editValue[:len(m.editValue)-1]
		}
		return m, nil
	}

	if keyMsg.Type == tea.KeyRunes || keyMsg.Type == tea.KeySpace {
		text := string(keyMsg.Runes)
		if keyMsg.Type == tea.KeySpace {
			text = " "
		}
		if m.selected {
			m.urls += text
		} else if m.settingsMode && m.editingValue {
			m.editValue += text
		}
	}
	return m, nil
}

func (m uiModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.settingsMode {
		if m.editingValue {
			switch m.settingCursor {
			case 0: // page limit
				if val, err := strconv.Atoi(m.editValue); err == nil && val >= 0 {
					m.settings.Limit = val
				}
			case 1: // output folder
				if m.editValue != "" {
					m.settings.OutputFolder = m.editValue
				}
			}
			m.editingValue = false
			return m, nil
		}
		switch m.settingCursor {
		case 0:
			m.editValue = fmt.Sprintf("%d", m.settings.Limit)
			m.editingValue = true
		case 1:
			m.editValue = m.settings.OutputFolder
			m.editingValue = true
		case 2:
			m.settings.Parallel = !m.settings.Parallel
		case 3:
			m.settings.ClearCache = !m.settings.ClearCache
		case 4:
			m.settingsMode = false
		}
		return m, nil
	}

	if !m.selected {
		switch m.cursor {
		case 0:
			m.downloadType = "single"
			m.selected = true
		case 1:
			m.downloadType = "multi"
			m.selected = true
		case 2:
			m.settingsMode = true
			m.settingCursor = 0
		case 3:
			return m, tea.Quit
		}
		return m, nil
	}

	if strings.TrimSpace(m.urls) != "" {
		return m, tea.Quit
	}
	return m, nil
}

func (m uiModel) View() string {
	if m.settingsMode {
		return m.settingsView()
	}

	if !m.selected {
		s := titleStyle.Render("Spread Downloader") + "\n\n"
		s += "Select an option:\n\n"
		for i, choice := range m.choices {
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				choice = selectedStyle.Render(choice)
			}
			s += fmt.Sprintf("%s %s\n", cursor, choice)
		}
		s += "\n" + infoStyle.Render("Press q to quit, arrow keys to navigate, enter to select")
		return s
	}

	s := titleStyle.Render("Spread Downloader") + "\n\n"
	if m.downloadType == "multi" {
		s += "Enter the viewer URLs of the books, separated by spaces:\n"
	} else {
		s += "Enter the viewer URL of the book:\n"
	}
	s += fmt.Sprintf("> %s\n", m.urls)
	s += "\nPress Enter to start, Esc to go back\n"
	return s
}

func (m uiModel) settingsView() string {
	s := titleStyle.Render("Spread Downloader - Settings") + "\n\n"

	for i, option := range m.settingOptions {
		cursor := " "
		if m.settingCursor == i {
			cursor = ">"
			option = selectedStyle.Render(option)
		}

		if i == len(m.settingOptions)-1 {
			s += fmt.Sprintf("%s %s\n", cursor, option)
			continue
		}

		s += fmt.Sprintf("%s %s", cursor, settingLabelStyle.Render(option))
		if m.editingValue && m.settingCursor == i {
			s += fmt.Sprintf(": %s_\n", m.editValue)
			continue
		}

		switch i {
		case 0:
			value := "whole book"
			if m.settings.Limit > 0 {
				value = fmt.Sprintf("%d pages", m.settings.Limit)
			}
			s += fmt.Sprintf(": %s\n", settingValueStyle.Render(value))
		case 1:
			s += fmt.Sprintf(": %s\n", settingValueStyle.Render(m.settings.OutputFolder))
		case 2:
			s += fmt.Sprintf(": %s\n", settingValueStyle.Render(yesNo(m.settings.Parallel)))
		case 3:
			s += fmt.Sprintf(": %s\n", settingValueStyle.Render(yesNo(m.settings.ClearCache)))
		}
	}

	s += "\n" + infoStyle.Render("Press Enter to edit or toggle a setting, Esc to go back")
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// RunTerminalUI starts the terminal UI and hands the selection off to
// the same pipeline the CLI uses.
func RunTerminalUI() {
	p := tea.NewProgram(initialModel())
	m, err := p.Run()
	if err != nil {
		fmt.Printf("Error running UI: %v\n", err)
		os.Exit(1)
	}

	final := m.(uiModel)
	if !final.selected {
		return
	}

	urls := strings.Fields(final.urls)
	if len(urls) == 0 {
		return
	}

	args := &Args{
		Limit:         final.settings.Limit,
		Parallel:      final.settings.Parallel && final.downloadType == "multi",
		ClearCache:    final.settings.ClearCache,
		OutputFolder:  final.settings.OutputFolder,
		SpreadsFolder: "spreads",
	}

	info := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s Downloading %d book(s)\n", info("INFO:"), len(urls))

	start := time.Now()
	if err := run(context.Background(), args, urls); err != nil {
		color.Red("ERROR: %v", err)
		os.Exit(1)
	}
	fmt.Printf("%s Finished in %s\n", color.New(color.FgGreen).SprintFunc()("SUCCESS:"), formatDuration(time.Since(start)))
}
