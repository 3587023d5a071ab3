// SPDX-License-Identifier: MIT
package transport

import (
	applog "shoutnode/internal/log"
	"shoutnode/internal/telemetry"
)

// LoggingTransport writes each decoded frame to the debug log. It is used
// when no serial device is configured.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the frame carried by line. Undecodable lines are logged raw.
func (lt *LoggingTransport) Send(line []byte) error {
	if applog.GetLevel() > applog.LevelDebug {
		return nil
	}
	f, err := telemetry.Decode(line)
	if err != nil {
		applog.Debugf("Transport: raw line %q (%v)", line, err)
		return nil
	}
	applog.WithFields(applog.Fields{
		"gain":      f.DbSPL,
		"frequency": f.FrequencyHz,
		"shoot":     f.ShootPressed,
		"pause":     f.PausePressed,
		"divider":   f.Divider,
		"threshold": f.Threshold,
	}).Debug("Transport: frame")
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
