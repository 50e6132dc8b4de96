package coordinator

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"vehiclelookup/internal/metrics"
)

// Status is the outcome of the most recent lookup.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusSuccess         Status = "success"
	StatusNotFound        Status = "not_found"
	StatusAuthError       Status = "auth_error"
	StatusConnectionError Status = "connection_error"
	StatusError           Status = "error"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusIdle,
	StatusSuccess,
	StatusNotFound,
	StatusAuthError,
	StatusConnectionError,
	StatusError,
}

// Lookup outcome events. Each one is allowed from every state.
const (
	eventSucceed  = "succeed"
	eventNotFound = "miss"
	eventAuthFail = "auth_fail"
	eventConnFail = "conn_fail"
	eventFail     = "fail"
)

const enterStateCallback = "enter_state"

var eventFor = map[Status]string{
	StatusSuccess:         eventSucceed,
	StatusNotFound:        eventNotFound,
	StatusAuthError:       eventAuthFail,
	StatusConnectionError: eventConnFail,
	StatusError:           eventFail,
}

func statusNames() []string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return names
}

func newStatusMachine() *fsm.FSM {
	all := statusNames()

	events := make(fsm.Events, 0, len(eventFor))
	for _, s := range Statuses {
		name, ok := eventFor[s]
		if !ok {
			continue
		}
		events = append(events, fsm.EventDesc{Name: name, Src: all, Dst: string(s)})
	}

	callbacks := fsm.Callbacks{
		enterStateCallback: func(_ context.Context, e *fsm.Event) {
			metrics.SetStatus(e.Dst, all)
		},
	}

	metrics.SetStatus(string(StatusIdle), all)
	return fsm.NewFSM(string(StatusIdle), events, callbacks)
}

// transition moves the machine to status. Re-entering the current state is
// not an error.
func transition(ctx context.Context, machine *fsm.FSM, status Status) error {
	err := machine.Event(ctx, eventFor[status])
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}
