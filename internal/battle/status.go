package battle

import "fmt"

type Status string

const (
	StatusPlanning      Status = "planning"
	StatusGoalSelection Status = "goal_selection"
	StatusResolution    Status = "resolution"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPlanning, StatusGoalSelection, StatusResolution, StatusCompleted, StatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// Terminal statuses accept no further events.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Event string

const (
	EventBeginGoalSelection Event = "begin_goal_selection"
	EventBeginResolution    Event = "begin_resolution"
	EventComplete           Event = "complete"
	EventCancel             Event = "cancel"
)

type transitionKey struct {
	From  Status
	Event Event
}

var transitions = map[transitionKey]Status{
	{StatusPlanning, EventBeginGoalSelection}:   StatusGoalSelection,
	{StatusGoalSelection, EventBeginResolution}: StatusResolution,
	{StatusResolution, EventBeginGoalSelection}: StatusGoalSelection,
	{StatusGoalSelection, EventComplete}:        StatusCompleted,
	{StatusResolution, EventComplete}:           StatusCompleted,
	{StatusPlanning, EventCancel}:               StatusCancelled,
	{StatusGoalSelection, EventCancel}:          StatusCancelled,
	{StatusResolution, EventCancel}:             StatusCancelled,
}

// Next returns the status reached by applying ev to from.
func Next(from Status, ev Event) (Status, error) {
	to, ok := transitions[transitionKey{from, ev}]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
	}
	return to, nil
}

// EventFor finds the event that moves from to target.
func EventFor(from, target Status) (Event, error) {
	for k, to := range transitions {
		if k.From == from && to == target {
			return k.Event, nil
		}
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, target)
}
