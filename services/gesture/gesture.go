// Package gesture turns three debounced buttons into light-control actions.
//
// Step is evaluated once per main-loop iteration. Its rules, highest priority
// first:
//
//  1. nothing pressed: re-arm (state Idle)
//  2. red and green pressed: save the colour, once per hold, if a user colour
//     is active
//  3. anything else pressed: enter user mode, once per hold, if no user
//     colour is active
//
// Independently, a single pressed button increments its own channel on every
// iteration it is held.
package gesture

import (
	"time"

	"github.com/Jagichan/RGBMoodLight/types"
	"github.com/Jagichan/RGBMoodLight/x/timex"
)

// Buttons holds one pressed flag per channel button.
type Buttons [types.NumChannels]bool

// Count returns how many buttons are pressed.
func (b Buttons) Count() int {
	n := 0
	for _, p := range b {
		if p {
			n++
		}
	}
	return n
}

func (b Buttons) None() bool { return b.Count() == 0 }
func (b Buttons) All() bool  { return b.Count() == len(b) }

// Combo reports the save combination: red and green together.
func (b Buttons) Combo() bool { return b[types.Red] && b[types.Green] }

// First returns the pressed button with the highest priority: red, then
// green, then blue.
func (b Buttons) First() (types.Channel, bool) {
	for ch, p := range b {
		if p {
			return types.Channel(ch), true
		}
	}
	return 0, false
}

// State is the edge latch of the machine.
type State uint8

const (
	Idle       State = iota // released since the last action
	ComboHeld               // save fired, combination still held
	SingleHeld              // user mode entered, button still held
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ComboHeld:
		return "combo_held"
	case SingleHeld:
		return "single_held"
	}
	return "?"
}

type Action uint8

const (
	ActionNone Action = iota
	ActionSave
	ActionEnterUser
)

func (a Action) String() string {
	switch a {
	case ActionSave:
		return "save"
	case ActionEnterUser:
		return "enter_user"
	}
	return "none"
}

// Result is the outcome of one Step.
type Result struct {
	Next      State
	Action    Action
	Increment bool
	Channel   types.Channel
}

// Step evaluates one iteration. userActive is the user-colour flag before
// this iteration.
func Step(s State, b Buttons, userActive bool) Result {
	r := Result{Next: s}
	switch {
	case b.None():
		r.Next = Idle
	case b.Combo():
		if s == Idle && userActive {
			r.Action = ActionSave
			r.Next = ComboHeld
		}
	default:
		if s == Idle && !userActive {
			r.Action = ActionEnterUser
			r.Next = SingleHeld
		}
	}
	// Combos adjust too; the first pressed button wins.
	if ch, ok := b.First(); ok {
		r.Increment = true
		r.Channel = ch
	}
	return r
}

// Reader reports whether one button is pressed right now.
type Reader interface {
	Pressed() bool
}

// Debouncer confirms button readings by sampling twice across a delay.
type Debouncer struct {
	btn   [types.NumChannels]Reader
	clk   timex.Clock
	delay time.Duration
	last  Buttons
}

func NewDebouncer(btn [types.NumChannels]Reader, clk timex.Clock, delay time.Duration) *Debouncer {
	return &Debouncer{btn: btn, clk: clk, delay: delay}
}

func (d *Debouncer) read() Buttons {
	var b Buttons
	for i, r := range d.btn {
		b[i] = r.Pressed()
	}
	return b
}

// Sample reads every button, waits the debounce delay and reads again. A
// button whose two readings disagree keeps its previous confirmed value.
func (d *Debouncer) Sample() Buttons {
	first := d.read()
	d.clk.Sleep(d.delay)
	second := d.read()
	for i := range first {
		if first[i] == second[i] {
			d.last[i] = first[i]
		}
	}
	return d.last
}

// Last returns the most recent confirmed state.
func (d *Debouncer) Last() Buttons { return d.last }

// BootHold is the result of the boot-time check.
type BootHold uint8

const (
	HoldNone        BootHold = iota // not all pressed at power-on
	HoldUnconfirmed                 // all pressed, but not after the debounce delay
	HoldConfirmed                   // all pressed on both samples
)

// CheckBootHold looks for all buttons held at power-on. The delay is only
// spent when the first reading shows all buttons pressed.
func (d *Debouncer) CheckBootHold() BootHold {
	if !d.read().All() {
		return HoldNone
	}
	d.clk.Sleep(d.delay)
	if !d.read().All() {
		return HoldUnconfirmed
	}
	return HoldConfirmed
}
