package events

// derivations is the fixed fan-out table: emitting the key kind also emits
// the events built by each function, in order.
var derivations = map[Kind][]func(Event) Event{
	KindHypothesisCreated: {
		dashboardFrom,
		func(ev Event) Event {
			h, _ := ev.(HypothesisCreated)
			return CreateNotification{
				Type:       "info",
				Title:      "New hypothesis",
				Message:    h.Title,
				EntityType: "hypothesis",
				EntityID:   h.ID,
			}
		},
	},
	KindHypothesisMoved:   {dashboardFrom, kanbanFrom},
	KindHypothesisUpdated: {dashboardFrom},
	KindHypothesisDeleted: {dashboardFrom, kanbanFrom},
	KindExperimentCreated: {dashboardFrom},
	KindHypothesisApproved: {
		dashboardFrom,
		func(ev Event) Event {
			h, _ := ev.(HypothesisApproved)
			n := CreateNotification{
				Type:       "success",
				Title:      "Hypothesis approved",
				Message:    h.Title + " moved to " + h.Stage,
				EntityType: "hypothesis",
				EntityID:   h.ID,
			}
			if h.ApprovalStatus == "rejected" {
				n.Type = "warning"
				n.Title = "Hypothesis rejected"
			}
			return n
		},
	},
}

func dashboardFrom(ev Event) Event { return DashboardUpdated{Source: ev.Kind()} }

func kanbanFrom(ev Event) Event { return KanbanUpdated{Source: ev.Kind()} }

// Derived returns the secondary events that accompany ev. Kinds without an
// entry in the table derive nothing.
func Derived(ev Event) []Event {
	fns := derivations[ev.Kind()]
	if len(fns) == 0 {
		return nil
	}
	out := make([]Event, 0, len(fns))
	for _, fn := range fns {
		out = append(out, fn(ev))
	}
	return out
}
