// Package adapters finds the physical network adapters the mitigation can
// ride on and picks the one to use. Detection reads live interface state;
// selection applies the configured override, auto-selects a lone candidate,
// and falls back to an interactive prompt when several qualify.
package adapters

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/huh"
)

// ErrNoAdapterFound indicates no usable network adapter could be identified.
var ErrNoAdapterFound = errors.New("no suitable network adapter found")

// Candidate is a network adapter usable as the ipvlan parent: up, carrying
// an IPv4 address, and backed by real hardware.
type Candidate struct {
	Name     string
	Driver   string
	Speed    string
	Wireless bool
	Address  string // current IPv4 address in CIDR form
}

// Selector picks one adapter out of the detected candidates.
type Selector struct {
	prompt func(candidates []Candidate) (string, error)
}

// NewSelector creates a Selector that prompts on the terminal when more
// than one candidate qualifies.
func NewSelector() *Selector {
	return &Selector{prompt: promptAdapter}
}

// Select resolves the adapter to use. A non-empty override must name one of
// the candidates. With no override, a single candidate wins automatically
// and multiple candidates go to the interactive prompt, wired adapters
// listed before wireless ones.
func (s *Selector) Select(candidates []Candidate, override string) (Candidate, error) {
	if override != "" {
		for _, c := range candidates {
			if c.Name == override {
				return c, nil
			}
		}
		return Candidate{}, fmt.Errorf("configured adapter %q is not available: %w", override, ErrNoAdapterFound)
	}

	switch len(candidates) {
	case 0:
		return Candidate{}, ErrNoAdapterFound
	case 1:
		return candidates[0], nil
	}

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sortCandidates(ordered)

	name, err := s.prompt(ordered)
	if err != nil {
		return Candidate{}, fmt.Errorf("adapter selection aborted: %w", err)
	}
	for _, c := range ordered {
		if c.Name == name {
			return c, nil
		}
	}
	return Candidate{}, fmt.Errorf("selected adapter %q is not available: %w", name, ErrNoAdapterFound)
}

// sortCandidates orders wired adapters before wireless, then by name.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Wireless != candidates[j].Wireless {
			return !candidates[i].Wireless
		}
		return candidates[i].Name < candidates[j].Name
	})
}

func promptAdapter(candidates []Candidate) (string, error) {
	opts := make([]huh.Option[string], 0, len(candidates))
	for i, c := range candidates {
		label := fmt.Sprintf("%d. %s  %s", i+1, c.Name, c.Address)
		if c.Wireless {
			label += "  (wireless)"
		}
		if c.Driver != "" {
			label += "  [" + c.Driver + "]"
		}
		if c.Speed != "" {
			label += "  " + c.Speed
		}
		opts = append(opts, huh.NewOption(label, c.Name))
	}

	var chosen string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Multiple network adapters found").
			Description("Pick the adapter connected to the game network").
			Options(opts...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return chosen, nil
}
