package ladder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinCourtSize = 4
	MaxCourtSize = 5
	// MaxPlayers caps one match-week; layout counts grow exponentially past it.
	MaxPlayers = 60
)

var (
	ErrLayoutMismatch = errors.New("court layout does not match the number of players")
	ErrTooManyPlayers = fmt.Errorf("more than %d players in one match week", MaxPlayers)
)

// LayoutKind classifies a court layout for display.
type LayoutKind string

const (
	LayoutAllFours    LayoutKind = "all 4s"
	LayoutAllFives    LayoutKind = "all 5s"
	LayoutTopHeavy    LayoutKind = "top-heavy"
	LayoutBottomHeavy LayoutKind = "bottom-heavy"
	LayoutBalanced    LayoutKind = "balanced"
	LayoutEmpty       LayoutKind = "empty"
)

// Layouts returns every way to seat numPlayers on courts of 4 or 5 players.
// Each layout is an ordered list of court sizes; court 1 comes first.
// An empty result means the players cannot be scheduled, which includes
// more than MaxPlayers.
func Layouts(numPlayers int) [][]int {
	if numPlayers < MinCourtSize || numPlayers > MaxPlayers {
		return [][]int{}
	}

	if numPlayers%4 == 0 {
		return [][]int{repeat(4, numPlayers/4)}
	}
	if numPlayers%5 == 0 {
		return [][]int{repeat(5, numPlayers/5)}
	}

	layouts := make([][]int, 0)
	for courtsOf4 := 0; courtsOf4 <= numPlayers/4; courtsOf4++ {
		remaining := numPlayers - courtsOf4*4
		if remaining%5 != 0 {
			continue
		}
		layouts = append(layouts, permutations(courtsOf4, remaining/5)...)
	}
	return layouts
}

// permutations enumerates the distinct orderings of a multiset holding
// fours 4s and fives 5s, in lexicographic order. Counting instead of
// swapping elements means no duplicate is ever produced.
func permutations(fours, fives int) [][]int {
	total := fours + fives
	out := make([][]int, 0)
	current := make([]int, 0, total)

	var walk func(fours, fives int)
	walk = func(fours, fives int) {
		if len(current) == total {
			layout := make([]int, total)
			copy(layout, current)
			out = append(out, layout)
			return
		}
		if fours > 0 {
			current = append(current, 4)
			walk(fours-1, fives)
			current = current[:len(current)-1]
		}
		if fives > 0 {
			current = append(current, 5)
			walk(fours, fives-1)
			current = current[:len(current)-1]
		}
	}
	walk(fours, fives)
	return out
}

func repeat(size, count int) []int {
	layout := make([]int, count)
	for i := range layout {
		layout[i] = size
	}
	return layout
}

// ContainsLayout reports whether layout is one of Layouts(numPlayers),
// without enumerating them.
func ContainsLayout(numPlayers int, layout []int) bool {
	if numPlayers < MinCourtSize || numPlayers > MaxPlayers {
		return false
	}
	sum := 0
	for _, size := range layout {
		if size < MinCourtSize || size > MaxCourtSize {
			return false
		}
		sum += size
	}
	if sum != numPlayers {
		return false
	}
	// Layouts only offers uniform courts when they fit exactly.
	switch {
	case numPlayers%4 == 0:
		return Classify(layout) == LayoutAllFours
	case numPlayers%5 == 0:
		return Classify(layout) == LayoutAllFives
	}
	return true
}

// ApplyLayout slices rank-sorted players into consecutive courts, strongest
// players on court 1. The layout must account for every player exactly.
func ApplyLayout[T any](sortedPlayers []T, layout []int) ([][]T, error) {
	sum := 0
	for _, size := range layout {
		if size < MinCourtSize || size > MaxCourtSize {
			return nil, fmt.Errorf("%w: court size %d is not allowed", ErrLayoutMismatch, size)
		}
		sum += size
	}
	if sum != len(sortedPlayers) {
		return nil, fmt.Errorf("%w: layout seats %d, got %d players", ErrLayoutMismatch, sum, len(sortedPlayers))
	}

	courts := make([][]T, 0, len(layout))
	idx := 0
	for _, size := range layout {
		court := make([]T, size)
		copy(court, sortedPlayers[idx:idx+size])
		courts = append(courts, court)
		idx += size
	}
	return courts, nil
}

// Classify compares the first and last court of a mixed layout.
func Classify(layout []int) LayoutKind {
	if len(layout) == 0 {
		return LayoutEmpty
	}
	has4, has5 := false, false
	for _, size := range layout {
		switch size {
		case 4:
			has4 = true
		case 5:
			has5 = true
		}
	}
	switch {
	case has5 && !has4:
		return LayoutAllFives
	case has4 && !has5:
		return LayoutAllFours
	}

	first, last := layout[0], layout[len(layout)-1]
	switch {
	case first > last:
		return LayoutTopHeavy
	case first < last:
		return LayoutBottomHeavy
	default:
		return LayoutBalanced
	}
}

// Label renders a layout option, e.g. "Option 2: Top-heavy (5-4)".
func Label(layout []int, index int) string {
	parts := make([]string, len(layout))
	for i, size := range layout {
		parts[i] = strconv.Itoa(size)
	}
	joined := strings.Join(parts, "-")

	var name string
	switch Classify(layout) {
	case LayoutAllFives:
		name = "All 5-player courts"
	case LayoutAllFours:
		name = "All 4-player courts"
	case LayoutTopHeavy:
		name = "Top-heavy"
	case LayoutBottomHeavy:
		name = "Bottom-heavy"
	case LayoutEmpty:
		return fmt.Sprintf("Option %d: No courts", index+1)
	default:
		name = "Balanced"
	}
	return fmt.Sprintf("Option %d: %s (%s)", index+1, name, joined)
}
