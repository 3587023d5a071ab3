// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A small host: a mic, a headset that does both and a speaker.
func fakeHost() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "mic", MaxInputChannels: 1, DefaultSampleRate: 44100, DefaultLowInputLatency: 0.005},
		{Name: "headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{Name: "speaker", MaxOutputChannels: 2, DefaultSampleRate: 48000, DefaultHighOutputLatency: 0.04},
	}
}

// stubHost replaces the PortAudio device listing and defaults for one test.
func stubHost(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	origDevices := paDevicesFunc
	origIn, origOut := paLibDefaultInputDeviceFunc, paLibDefaultOutputDeviceFunc
	t.Cleanup(func() {
		paDevicesFunc = origDevices
		paLibDefaultInputDeviceFunc, paLibDefaultOutputDeviceFunc = origIn, origOut
	})

	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, err }
	if len(devices) > 0 {
		paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return devices[0], nil }
		paLibDefaultOutputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return devices[len(devices)-1], nil }
	}
}

func TestDeviceLookup(t *testing.T) {
	stubHost(t, fakeHost(), nil)

	type lookup func(int) (*portaudio.DeviceInfo, error)
	tests := []struct {
		name    string
		lookup  lookup
		id      int
		want    string
		wantErr string
	}{
		{"input default", InputDevice, -1, "mic", ""},
		{"input mic", InputDevice, 0, "mic", ""},
		{"input headset", InputDevice, 1, "headset", ""},
		{"input speaker", InputDevice, 2, "", "does not support input"},
		{"input below default", InputDevice, -2, "", "invalid device ID"},
		{"input past end", InputDevice, 3, "", "invalid device ID"},
		{"output default", OutputDevice, -1, "speaker", ""},
		{"output headset", OutputDevice, 1, "headset", ""},
		{"output speaker", OutputDevice, 2, "speaker", ""},
		{"output mic", OutputDevice, 0, "", "does not support output"},
		{"output past end", OutputDevice, 7, "", "invalid device ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := tt.lookup(tt.id)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, dev)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dev.Name)
		})
	}
}

func TestDeviceLookupErrors(t *testing.T) {
	listErr := errors.New("host API gone")

	t.Run("listing fails", func(t *testing.T) {
		stubHost(t, nil, listErr)
		_, err := InputDevice(0)
		assert.ErrorIs(t, err, listErr)
		_, err = OutputDevice(-1)
		assert.ErrorIs(t, err, listErr)
		_, err = HostDevices()
		assert.ErrorIs(t, err, listErr)
	})

	t.Run("default fails", func(t *testing.T) {
		stubHost(t, fakeHost(), nil)
		defaultErr := errors.New("no default output")
		paLibDefaultOutputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return nil, defaultErr }

		_, err := OutputDevice(-1)
		assert.ErrorIs(t, err, defaultErr)
		dev, err := OutputDevice(2)
		require.NoError(t, err, "explicit IDs do not consult the default")
		assert.Equal(t, "speaker", dev.Name)
	})
}

func TestHostDevicesSnapshot(t *testing.T) {
	stubHost(t, fakeHost(), nil)

	devices, err := HostDevices()
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, Device{
		ID: 0, Name: "mic", MaxInputChannels: 1, DefaultSampleRate: 44100, LowInputLatency: 0.005,
	}, devices[0])
	assert.Equal(t, 2, devices[2].ID)
	assert.Equal(t, 0.04, devices[2].HighOutputLatency)

	var kinds []string
	for _, d := range devices {
		kinds = append(kinds, d.Type())
	}
	assert.Equal(t, []string{"Input", "Input/Output", "Output"}, kinds)
}

func TestPaDevicesNeverNil(t *testing.T) {
	orig := paLibDevicesFunc
	t.Cleanup(func() { paLibDevicesFunc = orig })

	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return nil, nil }
	devices, err := paDevices()
	require.NoError(t, err)
	assert.NotNil(t, devices)
	assert.Empty(t, devices)

	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return nil, portaudio.NotInitialized }
	devices, err = paDevices()
	assert.ErrorIs(t, err, portaudio.NotInitialized)
	assert.Nil(t, devices)
}

func TestLifecycleWrapsErrors(t *testing.T) {
	origInit, origTerm := paLibInitialize, paLibTerminate
	t.Cleanup(func() { paLibInitialize, paLibTerminate = origInit, origTerm })

	paLibInitialize = func() error { return nil }
	paLibTerminate = func() error { return nil }
	assert.NoError(t, Initialize())
	assert.NoError(t, Terminate())

	paLibInitialize = func() error { return portaudio.DeviceUnavailable }
	paLibTerminate = func() error { return portaudio.NotInitialized }

	err := Initialize()
	assert.ErrorIs(t, err, portaudio.DeviceUnavailable)
	assert.Contains(t, err.Error(), "initialize PortAudio")

	err = Terminate()
	assert.ErrorIs(t, err, portaudio.NotInitialized)
	assert.Contains(t, err.Error(), "terminate PortAudio")
}

func TestGetDevicesReleasesPortAudio(t *testing.T) {
	origInit, origTerm := paLibInitialize, paLibTerminate
	t.Cleanup(func() { paLibInitialize, paLibTerminate = origInit, origTerm })
	stubHost(t, fakeHost(), nil)

	var calls []string
	paLibInitialize = func() error { calls = append(calls, "init"); return nil }
	paLibTerminate = func() error { calls = append(calls, "terminate"); return nil }

	devices, err := GetDevices()
	require.NoError(t, err)
	assert.Len(t, devices, 3)
	assert.Equal(t, []string{"init", "terminate"}, calls)

	calls = nil
	paLibInitialize = func() error { calls = append(calls, "init"); return portaudio.DeviceUnavailable }
	_, err = GetDevices()
	assert.ErrorIs(t, err, portaudio.DeviceUnavailable)
	assert.Equal(t, []string{"init"}, calls, "nothing to terminate after a failed init")
}

func TestDeviceType(t *testing.T) {
	tests := []struct {
		in, out int
		want    string
	}{
		{2, 2, "Input/Output"},
		{1, 0, "Input"},
		{0, 2, "Output"},
		{0, 0, "None"},
	}
	for _, tt := range tests {
		d := Device{MaxInputChannels: tt.in, MaxOutputChannels: tt.out}
		assert.Equal(t, tt.want, d.Type(), "in=%d out=%d", tt.in, tt.out)
	}
}

// Runs only where a real host API is present.
func TestHostDevicesOnHardware(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Skipf("PortAudio unavailable: %v", err)
	}
	t.Cleanup(func() { _ = Terminate() })

	devices, err := HostDevices()
	require.NoError(t, err)
	for i, d := range devices {
		assert.Equal(t, i, d.ID)
		assert.NotEmpty(t, d.Name)
	}
}
