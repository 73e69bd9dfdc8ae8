package battle

import (
	"errors"
	"testing"
)

func TestNext(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		ev      Event
		want    Status
		wantErr bool
	}{
		{name: "planning to goal selection", from: StatusPlanning, ev: EventBeginGoalSelection, want: StatusGoalSelection},
		{name: "goal selection to resolution", from: StatusGoalSelection, ev: EventBeginResolution, want: StatusResolution},
		{name: "resolution back to goal selection", from: StatusResolution, ev: EventBeginGoalSelection, want: StatusGoalSelection},
		{name: "resolution completes", from: StatusResolution, ev: EventComplete, want: StatusCompleted},
		{name: "planning cancels", from: StatusPlanning, ev: EventCancel, want: StatusCancelled},
		{name: "planning cannot resolve", from: StatusPlanning, ev: EventBeginResolution, wantErr: true},
		{name: "planning cannot complete", from: StatusPlanning, ev: EventComplete, wantErr: true},
		{name: "completed is terminal", from: StatusCompleted, ev: EventCancel, wantErr: true},
		{name: "cancelled is terminal", from: StatusCancelled, ev: EventBeginGoalSelection, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Next(tc.from, tc.ev)
			if tc.wantErr {
				if !errors.Is(err, ErrIllegalTransition) {
					t.Fatalf("want ErrIllegalTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEventFor(t *testing.T) {
	ev, err := EventFor(StatusGoalSelection, StatusCancelled)
	if err != nil || ev != EventCancel {
		t.Fatalf("got %q, %v", ev, err)
	}
	if _, err := EventFor(StatusCompleted, StatusPlanning); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("want ErrIllegalTransition, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus("resolution"); !ok || s != StatusResolution {
		t.Fatalf("got %q, %v", s, ok)
	}
	if _, ok := ParseStatus("victory"); ok {
		t.Fatalf("unexpected status accepted")
	}
}

func TestNumbersStat(t *testing.T) {
	cases := []struct {
		troops int
		want   int
	}{
		{0, 1}, {20, 1}, {21, 2}, {50, 2}, {100, 3}, {101, 4}, {200, 4},
		{400, 5}, {800, 6}, {1600, 7}, {3200, 8}, {6400, 9}, {6401, 10}, {50000, 10},
	}
	for _, tc := range cases {
		if got := NumbersStat(tc.troops); got != tc.want {
			t.Fatalf("NumbersStat(%d) = %d, want %d", tc.troops, got, tc.want)
		}
	}
}
