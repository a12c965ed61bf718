package model

import "fmt"

// Platform identifies a streaming platform. Values index the per-platform
// arrays carried by Observation and ChannelStatistics.
type Platform int

const (
	YouTube Platform = iota
	Twitch
)

// Platforms lists every platform in processing order. YouTube is always
// handled before Twitch.
var Platforms = [...]Platform{YouTube, Twitch}

func (p Platform) String() string {
	switch p {
	case YouTube:
		return "youtube"
	case Twitch:
		return "twitch"
	default:
		return fmt.Sprintf("platform(%d)", int(p))
	}
}

// Prefix is the short column prefix used in derived tables ("yt", "tw").
func (p Platform) Prefix() string {
	if p == Twitch {
		return "tw"
	}
	return "yt"
}

// Label is the upper-case tag used in session analysis rows.
func (p Platform) Label() string {
	if p == Twitch {
		return "TW"
	}
	return "YT"
}

// SessionColumn names the session id column in the main table.
func (p Platform) SessionColumn() string {
	return p.Prefix() + "_number"
}

// ViewerColumn names the viewer count column in the main table.
func (p Platform) ViewerColumn() string {
	return p.String()
}

// ParsePlatform accepts the long name, the prefix or the label.
func ParsePlatform(s string) (Platform, error) {
	switch s {
	case "youtube", "yt", "YT":
		return YouTube, nil
	case "twitch", "tw", "TW":
		return Twitch, nil
	}
	return 0, fmt.Errorf("unknown platform %q", s)
}
