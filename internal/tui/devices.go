// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"shoutnode/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Sample rates offered on the configuration screen.
var availableSampleRates = []float64{44100, 48000, 88200, 96000}

// DeviceFetcher returns the devices to list.
type DeviceFetcher func() ([]audio.Device, error)

// DeviceListModel lists audio devices and produces the config snippet for
// the selected one.
type DeviceListModel struct {
	fetch         DeviceFetcher
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	sampleRateIndex int
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a new device list model
func NewDeviceListModel(fetch DeviceFetcher) DeviceListModel {
	return DeviceListModel{fetch: fetch, activeScreen: ListScreen}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

func (m DeviceListModel) selected() audio.Device {
	return m.devices[m.selectedIndex]
}

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				if len(m.devices) > 0 {
					m.activeScreen = ConfigScreen
					m.sampleRateIndex = 0
					for i, rate := range availableSampleRates {
						if rate == m.selected().DefaultSampleRate {
							m.sampleRateIndex = i
							break
						}
					}
				}
			}
		case ConfigScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
				m.activeScreen = ListScreen
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.sampleRateIndex < len(availableSampleRates)-1 {
					m.sampleRateIndex++
				}
			}
		}
		m.refresh()
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen && len(m.devices) > 0 {
		m.viewport.SetContent(m.renderDeviceConfig())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Audio Device List")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Device Configuration")
		help = infoStyle.Render("↑/↓: Change Value • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		info := FormatDevice(device)
		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDeviceConfig shows the sample rate choice and the matching
// config.yaml fragment.
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.selected()

	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)
	sb.WriteString("Sample Rate:\n")
	for i, rate := range availableSampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}

	sb.WriteString("\nconfig.yaml:\n\n")
	sb.WriteString(ConfigSnippet(device, availableSampleRates[m.sampleRateIndex]))
	return sb.String()
}

// FormatDevice renders one device the way `list` prints it.
func FormatDevice(d audio.Device) string {
	return fmt.Sprintf("[%d] %s (%s)\n", d.ID, d.Name, d.Type()) +
		fmt.Sprintf("    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels) +
		fmt.Sprintf("    Default sample rate: %.0f Hz\n", d.DefaultSampleRate) +
		fmt.Sprintf("    Latency in: %.2f-%.2f ms, out: %.2f-%.2f ms\n",
			ms(d.LowInputLatency.Seconds()), ms(d.HighInputLatency.Seconds()),
			ms(d.LowOutputLatency.Seconds()), ms(d.HighOutputLatency.Seconds()))
}

func ms(seconds float64) float64 { return seconds * 1000 }

// ConfigSnippet returns the audio section selecting d at sampleRate.
func ConfigSnippet(d audio.Device, sampleRate float64) string {
	var sb strings.Builder
	sb.WriteString("audio:\n")
	if d.MaxInputChannels > 0 {
		fmt.Fprintf(&sb, "  input_device: %d\n", d.ID)
	}
	if d.MaxOutputChannels > 0 {
		fmt.Fprintf(&sb, "  output_device: %d\n", d.ID)
	}
	fmt.Fprintf(&sb, "  sample_rate: %.0f\n", sampleRate)
	return sb.String()
}

// StartDeviceListUI launches the Bubble Tea TUI for listing devices
func StartDeviceListUI(fetch DeviceFetcher) error {
	p := tea.NewProgram(NewDeviceListModel(fetch), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
