package ticketstatus

import "strings"

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	Pending    Status
	InProgress Status
	Ready      Status
	Served     Status
	Cancelled  Status
}

var Statuses = Enum{
	Pending:    Status{Name: "pending"},
	InProgress: Status{Name: "in-progress"},
	Ready:      Status{Name: "ready"},
	Served:     Status{Name: "served"},
	Cancelled:  Status{Name: "cancelled"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.InProgress,
	Statuses.Ready,
	Statuses.Served,
	Statuses.Cancelled,
}

// transitions holds the legal lifecycle moves. Served and cancelled are
// terminal: no status ever leaves them.
var transitions = map[string][]string{
	Statuses.Pending.Name:    {Statuses.InProgress.Name, Statuses.Cancelled.Name},
	Statuses.InProgress.Name: {Statuses.Ready.Name, Statuses.Cancelled.Name},
	Statuses.Ready.Name:      {Statuses.Served.Name},
	Statuses.Served.Name:     {},
	Statuses.Cancelled.Name:  {},
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// CanTransition reports whether moving from one status code to another is a
// legal lifecycle step.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status code admits no further transitions.
func IsTerminal(code string) bool {
	return len(transitions[code]) == 0 && ByName(code) != nil
}

// IsActive reports whether a ticket in this status still needs kitchen work.
func IsActive(code string) bool {
	return ByName(code) != nil && !IsTerminal(code)
}
