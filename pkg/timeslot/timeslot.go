// Package timeslot models the fixed 15-minute slots tiling a day.
//
// Slot labels are "HH:MM" strings with MM in {00, 15, 30, 45}. Raw
// observation times ("HH:MM" or "HH:MM:SS") are truncated to the start of
// their slot; the hour never changes.
package timeslot

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
)

var (
	ErrMalformedTime = errors.New("malformed time")
	ErrMalformedDate = errors.New("malformed date")
)

var labels = buildLabels()

func buildLabels() []string {
	out := make([]string, 0, config.SlotsPerDay)
	for m := 0; m < 24*60; m += config.SlotMinutes {
		out = append(out, format(m/60, m%60))
	}
	return out
}

func format(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// Labels returns the 96 slot labels in day order. The slice is a copy.
func Labels() []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// Clock parses "HH:MM" or "HH:MM:SS" into hour, minute and second.
func Clock(s string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	limits := []int{23, 59, 59}
	vals := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || len(p) == 0 || len(p) > 2 || n < 0 || n > limits[i] {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], nil
}

// Truncate maps a raw time to the label of its containing slot.
func Truncate(s string) (string, error) {
	hour, minute, _, err := Clock(s)
	if err != nil {
		return "", err
	}
	return format(hour, minute-minute%config.SlotMinutes), nil
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(config.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return d, nil
}

// At combines a date and a time of day into a UTC timestamp.
func At(date, clock string) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, second, err := Clock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second), nil
}

// Index returns the position of a label in day order.
func Index(label string) (int, bool) {
	i := sort.SearchStrings(labels, label)
	if i < len(labels) && labels[i] == label {
		return i, true
	}
	return 0, false
}

// SortKey orders labels on a circular axis that starts at anchor. Labels
// before the anchor wrap to the end of the day.
func SortKey(label, anchor string) int {
	i, ok := Index(label)
	if !ok {
		return len(labels)
	}
	a, _ := Index(anchor)
	return (i - a + len(labels)) % len(labels)
}

// Circular returns all labels starting at anchor and wrapping around.
func Circular(anchor string) []string {
	a, ok := Index(anchor)
	if !ok {
		a = 0
	}
	out := make([]string, 0, len(labels))
	out = append(out, labels[a:]...)
	return append(out, labels[:a]...)
}
