package buildconfig

import "fmt"

// Mode selects the default optimization behaviour of the bundler.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// DevSignal is the only mode signal value that selects development.
const DevSignal = "dev"

// ParseMode maps a mode signal (usually NODE_ENV) to a Mode.
//
// "dev" selects development. Everything else selects production, the second
// return value reports whether the signal was one of the recognised values
// ("", "production" or "prod") so callers can warn about or reject typos.
func ParseMode(signal string) (Mode, bool) {
	switch signal {
	case DevSignal:
		return Development, true
	case "", "production", "prod":
		return Production, true
	default:
		return Production, false
	}
}

func (m Mode) String() string {
	return string(m)
}

func (m Mode) validate() error {
	switch m {
	case Development, Production:
		return nil
	default:
		return fmt.Errorf("unknown mode %q", string(m))
	}
}
