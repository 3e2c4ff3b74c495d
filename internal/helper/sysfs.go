package helper

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/ppiankov/fanguard/internal/model"
)

// hwmon pwm_enable modes.
const (
	pwmModeManual = "1"
	pwmModeAuto   = "2"
	pwmMax        = 255
)

// Sysfs drives hwmon pwm files directly. Channels maps a channel name to
// its pwm file, e.g. "nct6775/pwm2" -> "/sys/class/hwmon/hwmon3/pwm2".
type Sysfs struct {
	Channels map[string]string
}

// NewSysfs creates a Sysfs executor over the given channel map.
func NewSysfs(channels map[string]string) *Sysfs {
	return &Sysfs{Channels: channels}
}

// Execute implements Executor.
func (s *Sysfs) Execute(env model.CommandEnvelope) (model.WriteResult, error) {
	switch env.Command {
	case model.SetChannelTarget:
		return s.setTarget(env)
	case model.RestoreAuto:
		return s.forAll(env.Command, func(pwm string) error {
			return writeValue(pwm+"_enable", pwmModeAuto)
		})
	case model.SetEmergencyCooling:
		return s.forAll(env.Command, func(pwm string) error {
			if err := writeValue(pwm+"_enable", pwmModeManual); err != nil {
				return err
			}
			return writeValue(pwm, strconv.Itoa(pwmMax))
		})
	}
	return model.WriteResult{}, fmt.Errorf("sysfs: unsupported command %q", env.Command)
}

func (s *Sysfs) setTarget(env model.CommandEnvelope) (model.WriteResult, error) {
	channel, _ := env.Payload["channel"].(string)
	pwm, ok := s.Channels[channel]
	if !ok {
		return model.WriteResult{
			Command:   env.Command,
			ErrorCode: model.WriteRejectedPolicy,
			Detail:    fmt.Sprintf("channel %q has no pwm mapping", channel),
		}, nil
	}
	target, ok := ToInt(env.Payload["target"])
	if !ok {
		return model.WriteResult{
			Command:   env.Command,
			ErrorCode: model.WriteRejectedPolicy,
			Detail:    "payload target is not a number",
		}, nil
	}

	if err := writeValue(pwm+"_enable", pwmModeManual); err != nil {
		return model.WriteResult{}, err
	}
	if err := writeValue(pwm, strconv.Itoa(PercentToPWM(target))); err != nil {
		return model.WriteResult{}, err
	}

	raw, err := readValue(pwm)
	if err != nil {
		return model.WriteResult{}, err
	}
	return model.WriteResult{
		Command: env.Command,
		Success: true,
		Detail:  fmt.Sprintf("wrote %s", pwm),
		Readback: map[string]any{
			"channel":   channel,
			"requested": target,
			"target":    PWMToPercent(raw),
			"raw":       raw,
		},
	}, nil
}

// forAll applies fn to every mapped pwm file; the first error wins but
// every channel is attempted. No mapped channels is ENODEV: nothing was
// written, so the command cannot be reported as applied.
func (s *Sysfs) forAll(cmd model.Command, fn func(pwm string) error) (model.WriteResult, error) {
	if len(s.Channels) == 0 {
		return model.WriteResult{}, fmt.Errorf("sysfs %s: no pwm channels mapped: %w", cmd, syscall.ENODEV)
	}
	names := make([]string, 0, len(s.Channels))
	for name := range s.Channels {
		names = append(names, name)
	}
	sort.Strings(names)

	var firstErr error
	for _, name := range names {
		if err := fn(s.Channels[name]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return model.WriteResult{}, firstErr
	}
	return model.WriteResult{
		Command:  cmd,
		Success:  true,
		Detail:   fmt.Sprintf("%s applied to %d channels", cmd, len(names)),
		Readback: map[string]any{"channels": names},
	}, nil
}

// PercentToPWM converts a 0-100 duty cycle to the 0-255 hwmon range.
func PercentToPWM(pct int) int {
	return int(math.Round(float64(pct) * pwmMax / 100))
}

// PWMToPercent converts a 0-255 hwmon value to a 0-100 duty cycle.
func PWMToPercent(raw int) int {
	return int(math.Round(float64(raw) * 100 / pwmMax))
}

func writeValue(path, value string) error {
	return os.WriteFile(path, []byte(value+"\n"), 0644)
}

func readValue(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}
