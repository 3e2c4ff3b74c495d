package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/fanguard/internal/model"
)

// HwmonBackendID identifies reports produced by Discover.
const HwmonBackendID = "hwmon"

var pwmFile = regexp.MustCompile(`^pwm[0-9]+$`)

// Discovery is the outcome of scanning a sysfs tree.
type Discovery struct {
	Report model.CapabilityReport
	// Paths maps channel names to their pwm control files.
	Paths map[string]string
}

// Discover scans <sysRoot>/class/hwmon for PWM channels. A channel is
// writable when its pwmN file exists and can restore automatic control
// when pwmN_enable exists. Confidence is the share of channels that
// support both.
func Discover(sysRoot string) (*Discovery, error) {
	if sysRoot == "" {
		sysRoot = "/sys"
	}
	devices, err := filepath.Glob(filepath.Join(sysRoot, "class", "hwmon", "hwmon*"))
	if err != nil {
		return nil, fmt.Errorf("scan hwmon: %w", err)
	}
	sort.Strings(devices)

	d := &Discovery{
		Report: model.NewCapabilityReport(HwmonBackendID, map[string]model.ChannelCaps{}),
		Paths:  map[string]string{},
	}
	seen := map[string]bool{}

	for _, dev := range devices {
		entries, err := os.ReadDir(dev)
		if err != nil {
			d.Report.Reasons = append(d.Report.Reasons, fmt.Sprintf("%s: unreadable: %v", filepath.Base(dev), err))
			continue
		}
		name := deviceName(dev)
		if seen[name] {
			name = filepath.Base(dev)
		}
		seen[name] = true

		for _, e := range entries {
			if e.IsDir() || !pwmFile.MatchString(e.Name()) {
				continue
			}
			channel := name + "/" + e.Name()
			path := filepath.Join(dev, e.Name())
			_, enableErr := os.Stat(path + "_enable")

			caps := model.ChannelCaps{
				WriteSupported:       true,
				RestoreAutoSupported: enableErr == nil,
			}
			d.Report.Channels[channel] = caps
			d.Paths[channel] = path

			if caps.RestoreAutoSupported {
				d.Report.Reasons = append(d.Report.Reasons, channel+": pwm and enable present")
			} else {
				d.Report.Reasons = append(d.Report.Reasons, channel+": no "+e.Name()+"_enable, restore_auto unsupported")
			}
		}
	}

	total := len(d.Report.Channels)
	if total == 0 {
		d.Report.Reasons = append(d.Report.Reasons, "no pwm channels found")
		return d, nil
	}
	supported := 0
	for _, c := range d.Report.Channels {
		if c.WriteSupported && c.RestoreAutoSupported {
			supported++
		}
	}
	d.Report.Confidence = float64(supported) / float64(total)
	return d, nil
}

func deviceName(dev string) string {
	data, err := os.ReadFile(filepath.Join(dev, "name"))
	if err != nil {
		return filepath.Base(dev)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return filepath.Base(dev)
	}
	return name
}
