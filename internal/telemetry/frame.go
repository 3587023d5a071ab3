// SPDX-License-Identifier: MIT
package telemetry

// RawMax is the full-scale reading of the 10-bit digitizer behind the
// divider and threshold potentiometers.
const RawMax = 1023

// Frame is one fully populated telemetry record. Field order here matches
// the wire order.
type Frame struct {
	DbSPL        float64 // "gain"
	FrequencyHz  float64 // "frequency"
	ShootPressed bool    // "button_pressed_shoot"
	PausePressed bool    // "button_pressed_pause"
	Divider      int
	Threshold    int
}

// Snapshot is the digital-input half of a frame, already mapped from raw
// digitizer values.
type Snapshot struct {
	ShootPressed bool
	PausePressed bool
	Divider      int
	Threshold    int
}

// Frame combines the snapshot with an acoustic measurement.
func (s Snapshot) Frame(dbSPL, frequencyHz float64) Frame {
	return Frame{
		DbSPL:        dbSPL,
		FrequencyHz:  frequencyHz,
		ShootPressed: s.ShootPressed,
		PausePressed: s.PausePressed,
		Divider:      s.Divider,
		Threshold:    s.Threshold,
	}
}

func clampRaw(raw int) int {
	return max(0, min(raw, RawMax))
}

// DividerFromRaw maps a raw reading onto [800, 1200].
func DividerFromRaw(raw int) int {
	return int(800 + 400*float64(clampRaw(raw))/RawMax)
}

// ThresholdFromRaw maps a raw reading onto [30, 90].
func ThresholdFromRaw(raw int) int {
	return int(30 + 60*float64(clampRaw(raw))/RawMax)
}

// Panel supplies the current digital-input state.
type Panel interface {
	Snapshot() Snapshot
}

// StaticPanel is a Panel with fixed readings, used when the node has no
// physical buttons or potentiometers attached.
type StaticPanel struct {
	snap Snapshot
}

var _ Panel = (*StaticPanel)(nil)

// NewStaticPanel maps the configured raw readings once.
func NewStaticPanel(dividerRaw, thresholdRaw int, shoot, pause bool) *StaticPanel {
	return &StaticPanel{snap: Snapshot{
		ShootPressed: shoot,
		PausePressed: pause,
		Divider:      DividerFromRaw(dividerRaw),
		Threshold:    ThresholdFromRaw(thresholdRaw),
	}}
}

// Snapshot returns the fixed readings.
func (p *StaticPanel) Snapshot() Snapshot {
	return p.snap
}
