// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"shoutnode/internal/playback"
	"shoutnode/internal/telemetry"
	"shoutnode/internal/transport/udp"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Gauge bounds for the sound level bar.
const (
	gaugeMinDb = 0.0
	gaugeMaxDb = 120.0
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// CommandSender delivers one command token to the node.
type CommandSender func(playback.Command) error

// MonitorOptions wires the monitor to its data sources. Spectra and Send
// are optional.
type MonitorOptions struct {
	Source  string // Shown in the header, e.g. "/dev/ttyACM0".
	Lines   <-chan []byte
	Spectra <-chan udp.SpectrumPacket
	Send    CommandSender
}

type monitorKeys struct {
	commands map[playback.Command]key.Binding
	quit     key.Binding
}

func newMonitorKeys() monitorKeys {
	bind := func(k, desc string) key.Binding {
		return key.NewBinding(key.WithKeys(k), key.WithHelp(k, desc))
	}
	return monitorKeys{
		commands: map[playback.Command]key.Binding{
			playback.CmdInit:            bind("i", "init"),
			playback.CmdShoot:           bind("s", "shoot"),
			playback.CmdDie:             bind("d", "die"),
			playback.CmdPause:           bind("p", "pause"),
			playback.CmdResume:          bind("r", "resume"),
			playback.CmdStop:            bind("x", "stop"),
			playback.CmdMenuTrack:       bind("m", "menu"),
			playback.CmdBackgroundTrack: bind("b", "background"),
		},
		quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp lists bindings in wire order.
func (k monitorKeys) ShortHelp() []key.Binding {
	bindings := make([]key.Binding, 0, len(k.commands)+1)
	for _, c := range playback.Commands {
		bindings = append(bindings, k.commands[c])
	}
	return append(bindings, k.quit)
}

// FullHelp returns the same bindings as ShortHelp.
func (k monitorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type (
	lineMsg     []byte
	spectrumMsg udp.SpectrumPacket
	sourceDone  struct{}
	sentMsg     struct {
		cmd playback.Command
		err error
	}
)

// MonitorModel shows decoded telemetry frames and sends commands on key
// presses.
type MonitorModel struct {
	opts MonitorOptions
	keys monitorKeys
	help help.Model

	frame    telemetry.Frame
	frames   int
	badLines int
	lastErr  error
	spectrum []float32
	status   string
	done     bool
	width    int
}

// NewMonitorModel returns a monitor reading from opts.
func NewMonitorModel(opts MonitorOptions) MonitorModel {
	return MonitorModel{
		opts:  opts,
		keys:  newMonitorKeys(),
		help:  help.New(),
		width: 60,
	}
}

// Init starts listening on every configured source.
func (m MonitorModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForLine(m.opts.Lines)}
	if m.opts.Spectra != nil {
		cmds = append(cmds, waitForSpectrum(m.opts.Spectra))
	}
	return tea.Batch(cmds...)
}

func waitForLine(lines <-chan []byte) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-lines
		if !ok {
			return sourceDone{}
		}
		return lineMsg(line)
	}
}

func waitForSpectrum(spectra <-chan udp.SpectrumPacket) tea.Cmd {
	return func() tea.Msg {
		pkt, ok := <-spectra
		if !ok {
			return nil
		}
		return spectrumMsg(pkt)
	}
}

func sendCommand(send CommandSender, cmd playback.Command) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{cmd: cmd, err: send(cmd)}
	}
}

// Update handles input and updates the model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case lineMsg:
		frame, err := telemetry.Decode(msg)
		if err != nil {
			m.badLines++
			m.lastErr = err
		} else {
			m.frame = frame
			m.frames++
		}
		return m, waitForLine(m.opts.Lines)

	case spectrumMsg:
		m.spectrum = msg.Magnitudes
		return m, waitForSpectrum(m.opts.Spectra)

	case sourceDone:
		m.done = true

	case sentMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.cmd.Token(), msg.err)
		} else {
			m.status = "sent " + msg.cmd.Token()
		}

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		for _, c := range playback.Commands {
			if !key.Matches(msg, m.keys.commands[c]) {
				continue
			}
			if m.opts.Send == nil {
				m.status = "read-only source, " + c.Token() + " not sent"
				return m, nil
			}
			return m, sendCommand(m.opts.Send, c)
		}
	}
	return m, nil
}

// View renders the UI
func (m MonitorModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Shout Node Monitor"))
	sb.WriteString("  " + infoStyle.Render(m.opts.Source))
	if m.done {
		sb.WriteString("  " + errorStyle.Render("(source closed)"))
	}
	sb.WriteString("\n\n")

	barWidth := max(m.width-30, 10)
	f := m.frame
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("Level", fmt.Sprintf("%s %6.2f dB", gauge(f.DbSPL, barWidth), f.DbSPL))
	row("Frequency", fmt.Sprintf("%.2f Hz", f.FrequencyHz))
	row("Buttons", fmt.Sprintf("shoot %s  pause %s", pressed(f.ShootPressed), pressed(f.PausePressed)))
	row("Divider", fmt.Sprintf("%d", f.Divider))
	row("Threshold", fmt.Sprintf("%d", f.Threshold))
	row("Frames", fmt.Sprintf("%d ok, %d rejected", m.frames, m.badLines))

	if len(m.spectrum) > 0 {
		row("Spectrum", sparkline(m.spectrum, barWidth))
	}
	if m.lastErr != nil {
		sb.WriteString(errorStyle.Render("last error: "+m.lastErr.Error()) + "\n")
	}
	if m.status != "" {
		sb.WriteString(highlightStyle.Render(m.status) + "\n")
	}

	sb.WriteString("\n" + m.help.View(m.keys))
	return sb.String()
}

func pressed(b bool) string {
	if b {
		return highlightStyle.Render("●")
	}
	return "○"
}

// gauge renders db as a bar of width cells.
func gauge(db float64, width int) string {
	ratio := (db - gaugeMinDb) / (gaugeMaxDb - gaugeMinDb)
	ratio = max(0, min(ratio, 1))
	filled := int(ratio*float64(width) + 0.5)
	return highlightStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}

// sparkline folds mags into width columns, keeping each column's maximum,
// and scales them against the overall peak.
func sparkline(mags []float32, width int) string {
	cols := min(width, len(mags))
	if cols == 0 {
		return ""
	}
	values := make([]float32, cols)
	var peak float32
	for i, v := range mags {
		c := i * cols / len(mags)
		values[c] = max(values[c], v)
		peak = max(peak, v)
	}

	var sb strings.Builder
	last := len(sparkBlocks) - 1
	for _, v := range values {
		idx := 0
		if peak > 0 {
			idx = max(0, int(v/peak*float32(last)))
		}
		sb.WriteRune(sparkBlocks[idx])
	}
	return sb.String()
}

// RunMonitor launches the monitor until the user quits.
func RunMonitor(opts MonitorOptions) error {
	p := tea.NewProgram(NewMonitorModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
