package device

import "context"

// Client controls one miner through its management API
type Client interface {
	// Address returns the miner address the client talks to
	Address() string

	// Info reads status and telemetry, retrying transient network failures
	Info(ctx context.Context) (*Info, error)

	// ApplySettings sends a core voltage and frequency pair in one attempt
	ApplySettings(ctx context.Context, settings Settings) error

	// Restart asks the miner to reboot in one attempt
	Restart(ctx context.Context) error
}

// Settings is the tunable pair a benchmark round applies
type Settings struct {
	CoreVoltage int `json:"coreVoltage"`
	Frequency   int `json:"frequency"`
}

// Info is the subset of /api/system/info a benchmark consumes
type Info struct {
	HashRate          float64 `json:"hashRate"`
	VRTemp            float64 `json:"vrTemp"`
	Temp              float64 `json:"temp"`
	Frequency         float64 `json:"frequency"`
	CoreVoltage       int     `json:"coreVoltage"`
	CoreVoltageActual int     `json:"coreVoltageActual"`
	Voltage           float64 `json:"voltage"`
	Current           float64 `json:"current"`
	Power             float64 `json:"power"`
	SmallCoreCount    int     `json:"smallCoreCount"`
	ASICCount         int     `json:"asicCount"`
	ASICModel         string  `json:"ASICModel"`
	Version           string  `json:"version"`
	BoardType         string  `json:"boardType"`
	Hostname          string  `json:"hostname"`
	UptimeSeconds     int64   `json:"uptimeSeconds"`
}

// BusPower returns the input power in watts derived from bus voltage (mV)
// and current (mA).
func (i *Info) BusPower() float64 {
	return i.Voltage * i.Current / 1e6
}

// ExpectedHashRate returns the nominal hashrate in GH/s for the reported
// frequency and core layout.
func (i *Info) ExpectedHashRate() float64 {
	return i.Frequency * float64(i.SmallCoreCount*i.ASICCount) / 1000
}
