package types

// Action is the evaluator's recommendation for one symbol on one bar.
type Action string

const (
	// ActionEnter opens a new long position. Only meaningful while flat.
	ActionEnter Action = "enter"
	// ActionExit closes the open position.
	ActionExit Action = "exit"
	// ActionNone takes no action this bar.
	ActionNone Action = "none"
)
