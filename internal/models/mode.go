package models

import (
	"errors"
	"fmt"
	"strings"
)

type SessionMode string

const (
	ModePomodoro SessionMode = "pomodoro"
	ModeFiftyTen SessionMode = "50-10"
	ModeFiftyTwo SessionMode = "52-17"
	ModeCustom   SessionMode = "custom"
)

var (
	ErrInvalidDuration = errors.New("invalid duration: study and break minutes must be >= 1")
	ErrUnknownMode     = errors.New("unknown session mode")
)

// Durations is a (study, break) pair in whole minutes.
type Durations struct {
	StudyMinutes int `json:"study_minutes"`
	BreakMinutes int `json:"break_minutes"`
}

var presetDurations = map[SessionMode]Durations{
	ModePomodoro: {StudyMinutes: 25, BreakMinutes: 5},
	ModeFiftyTen: {StudyMinutes: 50, BreakMinutes: 10},
	ModeFiftyTwo: {StudyMinutes: 52, BreakMinutes: 17},
}

// ParseMode accepts the canonical names plus a few spellings the CLI allows.
func ParseMode(s string) (SessionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pomodoro", "pomo", "25-5":
		return ModePomodoro, nil
	case "50-10", "fifty-ten", "50/10":
		return ModeFiftyTen, nil
	case "52-17", "fifty-two-seventeen", "52/17":
		return ModeFiftyTwo, nil
	case "custom":
		return ModeCustom, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// ResolveDurations maps a mode to its study/break pair. The custom values are
// only consulted for ModeCustom and must both be positive.
func ResolveDurations(mode SessionMode, customStudy, customBreak int) (Durations, error) {
	if mode == ModeCustom {
		if customStudy < 1 || customBreak < 1 {
			return Durations{}, fmt.Errorf("%w (got study=%d, break=%d)", ErrInvalidDuration, customStudy, customBreak)
		}
		return Durations{StudyMinutes: customStudy, BreakMinutes: customBreak}, nil
	}
	d, ok := presetDurations[mode]
	if !ok {
		return Durations{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return d, nil
}

func Modes() []SessionMode {
	return []SessionMode{ModePomodoro, ModeFiftyTen, ModeFiftyTwo, ModeCustom}
}
