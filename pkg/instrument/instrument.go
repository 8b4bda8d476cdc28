// Package instrument holds the fixed percussion table that defines the rows
// of a beatbox grid.
package instrument

import "strings"

// Count is the number of instrument rows in a grid
const Count = 16

// Slot maps one grid row to a General MIDI percussion key
type Slot struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Trigger uint8  `json:"trigger"` // MIDI note on the percussion channel
}

// Row order is also the row order of persisted grids, so it never changes.
var slots = [Count]Slot{
	{0, "Bass Drum", 35},
	{1, "Closed Hi-Hat", 42},
	{2, "Open Hi-Hat", 46},
	{3, "Acoustic Snare", 38},
	{4, "Crash Cymbal", 49},
	{5, "Hand Clap", 39},
	{6, "High Tom", 50},
	{7, "Hi Bongo", 60},
	{8, "Maracas", 70},
	{9, "Whistle", 72},
	{10, "Low Conga", 64},
	{11, "Cowbell", 56},
	{12, "Vibraslap", 58},
	{13, "Low-mid Tom", 47},
	{14, "High Agogo", 67},
	{15, "Open Hi Conga", 63},
}

// All returns the table in row order
func All() [Count]Slot {
	return slots
}

// Get returns the slot for a row index
func Get(index int) (Slot, bool) {
	if index < 0 || index >= Count {
		return Slot{}, false
	}
	return slots[index], true
}

// ByTrigger finds the slot that plays the given MIDI note
func ByTrigger(note uint8) (Slot, bool) {
	for _, s := range slots {
		if s.Trigger == note {
			return s, true
		}
	}
	return Slot{}, false
}

// ByName finds a slot by display name, ignoring case and surrounding space
func ByName(name string) (Slot, bool) {
	name = strings.TrimSpace(name)
	for _, s := range slots {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Slot{}, false
}

// Names returns the display names in row order
func Names() []string {
	names := make([]string, 0, Count)
	for _, s := range slots {
		names = append(names, s.Name)
	}
	return names
}
