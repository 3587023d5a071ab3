// SPDX-License-Identifier: MIT
package playback

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Command is a decoded command token.
type Command int

// Commands understood by the arbiter. CmdUnknown is the zero value so that
// anything unrecognised is a no-op.
const (
	CmdUnknown Command = iota
	CmdInit
	CmdShoot
	CmdDie
	CmdPause
	CmdResume
	CmdStop
	CmdMenuTrack
	CmdBackgroundTrack
)

// Two of the tokens are sample file names on the device and must stay
// spelled that way on the wire.
var commandTokens = [...]string{
	CmdUnknown:         "",
	CmdInit:            "init",
	CmdShoot:           "shoot.wav",
	CmdDie:             "die.wav",
	CmdPause:           "pause",
	CmdResume:          "resume",
	CmdStop:            "stop",
	CmdMenuTrack:       "main_menu.wav",
	CmdBackgroundTrack: "shout2play.wav",
}

// Commands lists every known command in wire order.
var Commands = []Command{CmdInit, CmdShoot, CmdDie, CmdPause, CmdResume, CmdStop, CmdMenuTrack, CmdBackgroundTrack}

// ParseCommand decodes one line read from the link. Surrounding whitespace
// and CR are ignored; matching is exact otherwise.
func ParseCommand(line string) Command {
	token := strings.TrimSpace(line)
	for _, c := range Commands {
		if commandTokens[c] == token {
			return c
		}
	}
	return CmdUnknown
}

// Token returns the wire token for c, or "unknown".
func (c Command) Token() string {
	if c <= CmdUnknown || int(c) >= len(commandTokens) {
		return "unknown"
	}
	return commandTokens[c]
}

func (c Command) String() string {
	return c.Token()
}

// minHintScore is the Jaro-Winkler similarity above which an unknown token
// is reported as a probable typo.
const minHintScore = 0.8

// NearestCommand returns the known command most similar to token and its
// similarity in [0, 1]. ok is false when nothing is similar enough to be a
// useful hint.
func NearestCommand(token string) (cmd Command, score float64, ok bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return CmdUnknown, 0, false
	}
	for _, c := range Commands {
		if s := matchr.JaroWinkler(token, commandTokens[c], false); s > score {
			cmd, score = c, s
		}
	}
	return cmd, score, score >= minHintScore
}
