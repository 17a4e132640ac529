package signal

import "fmt"

// Direction is the side a signal leans to.
type Direction int

const (
	Neutral Direction = iota
	Bearish
	Bullish
)

func (d Direction) String() string {
	switch d {
	case Bearish:
		return "bearish"
	case Bullish:
		return "bullish"
	default:
		return "neutral"
	}
}

// Intensity grades how strongly a signal leans.
type Intensity int

const (
	None Intensity = iota
	Weak
	Strong
)

func (i Intensity) String() string {
	switch i {
	case Weak:
		return "weak"
	case Strong:
		return "strong"
	default:
		return "none"
	}
}

// Strength is the discrete classification of a signal. Compare values with == or use the accessors.
type Strength struct {
	dir   Direction
	level Intensity
}

var (
	StrongBearish = Strength{dir: Bearish, level: Strong}
	WeakBearish   = Strength{dir: Bearish, level: Weak}
	NeutralSignal = Strength{dir: Neutral, level: None}
	WeakBullish   = Strength{dir: Bullish, level: Weak}
	StrongBullish = Strength{dir: Bullish, level: Strong}
)

var strengthNames = map[Strength]string{
	StrongBearish: "STRONG_BEARISH",
	WeakBearish:   "WEAK_BEARISH",
	NeutralSignal: "NEUTRAL",
	WeakBullish:   "WEAK_BULLISH",
	StrongBullish: "STRONG_BULLISH",
}

// Direction returns the side of the classification.
func (s Strength) Direction() Direction { return s.dir }

// Intensity returns the grade of the classification.
func (s Strength) Intensity() Intensity { return s.level }

func (s Strength) String() string {
	if name, ok := strengthNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseStrength maps a tag such as "WEAK_BEARISH" back to its Strength.
func ParseStrength(tag string) (Strength, error) {
	for s, name := range strengthNames {
		if name == tag {
			return s, nil
		}
	}
	return Strength{}, fmt.Errorf("unknown signal strength %q", tag)
}

// MarshalText encodes the strength as its tag so journals stay readable.
func (s Strength) MarshalText() ([]byte, error) {
	if _, ok := strengthNames[s]; !ok {
		return nil, fmt.Errorf("invalid signal strength %d/%d", s.dir, s.level)
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a tag produced by MarshalText.
func (s *Strength) UnmarshalText(text []byte) error {
	parsed, err := ParseStrength(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
