package runner

import (
	"github.com/mensylisir/xmupgrade/ending"
)

// State is a stage of a run. A run enters each state once. RemoteDispatch
// follows PreCommands when misc.remote_order is after_pre_commands.
type State int

const (
	Init State = iota
	RemoteDispatch
	PreCommands
	MainSteps
	PrivilegeClear
	PostCommands
	Report
	Terminal
)

var stateNames = [...]string{
	Init:           "init",
	RemoteDispatch: "remote_dispatch",
	PreCommands:    "pre_commands",
	MainSteps:      "main_steps",
	PrivilegeClear: "privilege_clear",
	PostCommands:   "post_commands",
	Report:         "report",
	Terminal:       "terminal",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Observer is told about every state change and every finished unit.
type Observer interface {
	OnState(s State)
	OnUnit(phase, name string, outcome ending.Outcome)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are no-ops.
type ObserverFuncs struct {
	StateFunc func(s State)
	UnitFunc  func(phase, name string, outcome ending.Outcome)
}

func (f ObserverFuncs) OnState(s State) {
	if f.StateFunc != nil {
		f.StateFunc(s)
	}
}

func (f ObserverFuncs) OnUnit(phase, name string, outcome ending.Outcome) {
	if f.UnitFunc != nil {
		f.UnitFunc(phase, name, outcome)
	}
}
