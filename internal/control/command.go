package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/relay-lights/internal/logic"
)

// Command names accepted by Submit.
const (
	CmdMode         = "mode"
	CmdPattern      = "pattern"
	CmdSpeed        = "speed"
	CmdSchedule     = "schedule"
	CmdSunset       = "sunset"
	CmdSunsetOffset = "sunset_offset"
	CmdShuffle      = "shuffle"
	CmdHold         = "hold"
	CmdAllOn        = "allon"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidValue   = errors.New("invalid value")
	ErrStopped        = errors.New("control loop stopped")
)

// Request is a command from one of the outer surfaces.
type Request struct {
	ID      string
	Source  string
	Command string
	Value   string
}

// Reply carries the outcome back to the submitter.
type Reply struct {
	Result logic.CommandResult
	Err    error
}

// IsInputError reports whether err was caused by bad user input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, logic.ErrUnknownPattern) ||
		errors.Is(err, logic.ErrUnknownMode) ||
		errors.Is(err, logic.ErrInvalidTime)
}

func apply(c *logic.Controller, req Request, now logic.Millis) (logic.CommandResult, error) {
	v := strings.TrimSpace(req.Value)
	switch req.Command {
	case CmdMode:
		return c.SetMode(v, now)
	case CmdPattern:
		return c.SetPattern(v, now)
	case CmdSpeed:
		n, err := parseInt(v)
		if err != nil {
			return logic.CommandResult{}, err
		}
		return c.SetSpeed(n), nil
	case CmdSchedule:
		on, off, ok := strings.Cut(v, "-")
		if !ok {
			return logic.CommandResult{}, fmt.Errorf("%w: want HH:MM-HH:MM", logic.ErrInvalidTime)
		}
		return c.SetSchedule(strings.TrimSpace(on), strings.TrimSpace(off))
	case CmdSunset:
		b, err := parseBool(v)
		if err != nil {
			return logic.CommandResult{}, err
		}
		return c.SetSunsetMode(b), nil
	case CmdSunsetOffset:
		n, err := parseInt(v)
		if err != nil {
			return logic.CommandResult{}, err
		}
		return c.SetSunsetOffset(n), nil
	case CmdShuffle:
		b, err := parseBool(v)
		if err != nil {
			return logic.CommandResult{}, err
		}
		return c.SetShuffle(b, now), nil
	case CmdHold:
		n, err := parseInt(v)
		if err != nil {
			return logic.CommandResult{}, err
		}
		return c.SetHoldSeconds(n), nil
	case CmdAllOn:
		return c.ToggleAllOn(now), nil
	}
	return logic.CommandResult{}, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)
	}
	return n, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not on/off", ErrInvalidValue, s)
	}
	return b, nil
}
