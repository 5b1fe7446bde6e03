// Package events defines the closed set of change notifications exchanged
// between the server and connected clients, their wire envelope, and the
// fixed tables that decide which events fan out locally or travel upstream.
package events

import (
	"encoding/json"

	"hypolab/internal/domain"
)

type Kind string

const (
	KindHypothesisCreated   Kind = "hypothesisCreated"
	KindHypothesisUpdated   Kind = "hypothesisUpdated"
	KindHypothesisDeleted   Kind = "hypothesisDeleted"
	KindHypothesisMoved     Kind = "hypothesisMoved"
	KindHypothesisApproved  Kind = "hypothesisApproved"
	KindCommentAdded        Kind = "commentAdded"
	KindPresentationCreated Kind = "presentationCreated"

	KindExperimentCreated Kind = "experimentCreated"
	KindExperimentUpdated Kind = "experimentUpdated"
	KindExperimentDeleted Kind = "experimentDeleted"

	KindStageUpdated    Kind = "stageUpdated"
	KindStagesReordered Kind = "stagesReordered"

	KindUserCreated Kind = "userCreated"
	KindUserUpdated Kind = "userUpdated"
	KindUserDeleted Kind = "userDeleted"

	KindNotificationCreated  Kind = "notificationCreated"
	KindNotificationUpdated  Kind = "notificationUpdated"
	KindNotificationDeleted  Kind = "notificationDeleted"
	KindNotificationsReadAll Kind = "notificationsReadAll"

	KindSettingsUpdated Kind = "settingsUpdated"

	// Local-only kinds. They are derived on the client and never sent by the server.
	KindDashboardUpdated   Kind = "dashboardUpdated"
	KindKanbanUpdated      Kind = "kanbanUpdated"
	KindCreateNotification Kind = "createNotification"
)

// Event is one variant of the closed event set. The value itself is the
// envelope payload.
type Event interface {
	Kind() Kind
}

type HypothesisCreated struct{ domain.Hypothesis }

type HypothesisUpdated struct{ domain.Hypothesis }

type HypothesisDeleted struct {
	ID string `json:"id"`
}

type HypothesisMoved struct {
	domain.Hypothesis
	FromStage string `json:"fromStage"`
}

// HypothesisApproved carries the decided hypothesis. ApprovalStatus tells
// approval from rejection.
type HypothesisApproved struct{ domain.Hypothesis }

type CommentAdded struct{ domain.Comment }

type PresentationCreated struct{ domain.Presentation }

type ExperimentCreated struct{ domain.Experiment }

type ExperimentUpdated struct{ domain.Experiment }

type ExperimentDeleted struct {
	ID string `json:"id"`
}

type StageUpdated struct{ domain.Stage }

type StagesReordered struct {
	Stages []domain.Stage `json:"stages"`
}

type UserCreated struct{ domain.User }

type UserUpdated struct{ domain.User }

type UserDeleted struct {
	ID string `json:"id"`
}

type NotificationCreated struct{ domain.Notification }

type NotificationUpdated struct{ domain.Notification }

type NotificationDeleted struct {
	ID string `json:"id"`
}

type NotificationsReadAll struct {
	Count int `json:"count"`
}

type SettingsUpdated struct{ domain.Settings }

type DashboardUpdated struct {
	Source Kind `json:"source"`
}

type KanbanUpdated struct {
	Source Kind `json:"source"`
}

type CreateNotification struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	EntityType string `json:"entityType,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
}

func (HypothesisCreated) Kind() Kind    { return KindHypothesisCreated }
func (HypothesisUpdated) Kind() Kind    { return KindHypothesisUpdated }
func (HypothesisDeleted) Kind() Kind    { return KindHypothesisDeleted }
func (HypothesisMoved) Kind() Kind      { return KindHypothesisMoved }
func (HypothesisApproved) Kind() Kind   { return KindHypothesisApproved }
func (CommentAdded) Kind() Kind         { return KindCommentAdded }
func (PresentationCreated) Kind() Kind  { return KindPresentationCreated }
func (ExperimentCreated) Kind() Kind    { return KindExperimentCreated }
func (ExperimentUpdated) Kind() Kind    { return KindExperimentUpdated }
func (ExperimentDeleted) Kind() Kind    { return KindExperimentDeleted }
func (StageUpdated) Kind() Kind         { return KindStageUpdated }
func (StagesReordered) Kind() Kind      { return KindStagesReordered }
func (UserCreated) Kind() Kind          { return KindUserCreated }
func (UserUpdated) Kind() Kind          { return KindUserUpdated }
func (UserDeleted) Kind() Kind          { return KindUserDeleted }
func (NotificationCreated) Kind() Kind  { return KindNotificationCreated }
func (NotificationUpdated) Kind() Kind  { return KindNotificationUpdated }
func (NotificationDeleted) Kind() Kind  { return KindNotificationDeleted }
func (NotificationsReadAll) Kind() Kind { return KindNotificationsReadAll }
func (SettingsUpdated) Kind() Kind      { return KindSettingsUpdated }
func (DashboardUpdated) Kind() Kind     { return KindDashboardUpdated }
func (KanbanUpdated) Kind() Kind        { return KindKanbanUpdated }
func (CreateNotification) Kind() Kind   { return KindCreateNotification }

// decoders maps every known kind to the decoder of its variant.
var decoders = map[Kind]func(json.RawMessage) (Event, error){
	KindHypothesisCreated:    decodeAs[HypothesisCreated],
	KindHypothesisUpdated:    decodeAs[HypothesisUpdated],
	KindHypothesisDeleted:    decodeAs[HypothesisDeleted],
	KindHypothesisMoved:      decodeAs[HypothesisMoved],
	KindHypothesisApproved:   decodeAs[HypothesisApproved],
	KindCommentAdded:         decodeAs[CommentAdded],
	KindPresentationCreated:  decodeAs[PresentationCreated],
	KindExperimentCreated:    decodeAs[ExperimentCreated],
	KindExperimentUpdated:    decodeAs[ExperimentUpdated],
	KindExperimentDeleted:    decodeAs[ExperimentDeleted],
	KindStageUpdated:         decodeAs[StageUpdated],
	KindStagesReordered:      decodeAs[StagesReordered],
	KindUserCreated:          decodeAs[UserCreated],
	KindUserUpdated:          decodeAs[UserUpdated],
	KindUserDeleted:          decodeAs[UserDeleted],
	KindNotificationCreated:  decodeAs[NotificationCreated],
	KindNotificationUpdated:  decodeAs[NotificationUpdated],
	KindNotificationDeleted:  decodeAs[NotificationDeleted],
	KindNotificationsReadAll: decodeAs[NotificationsReadAll],
	KindSettingsUpdated:      decodeAs[SettingsUpdated],
	KindDashboardUpdated:     decodeAs[DashboardUpdated],
	KindKanbanUpdated:        decodeAs[KanbanUpdated],
	KindCreateNotification:   decodeAs[CreateNotification],
}

func decodeAs[T Event](raw json.RawMessage) (Event, error) {
	var v T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Known reports whether k belongs to the event set.
func Known(k Kind) bool {
	_, ok := decoders[k]
	return ok
}

// Kinds lists every known kind.
func Kinds() []Kind {
	out := make([]Kind, 0, len(decoders))
	for k := range decoders {
		out = append(out, k)
	}
	return out
}

// LocalOnly reports kinds that only exist inside a client's event bus.
func LocalOnly(k Kind) bool {
	switch k {
	case KindDashboardUpdated, KindKanbanUpdated, KindCreateNotification:
		return true
	}
	return false
}

// Forwardable reports whether a locally emitted kind is also pushed to the
// server. Only the hypothesis board events are wired upstream.
func Forwardable(k Kind) bool {
	switch k {
	case KindHypothesisCreated, KindHypothesisUpdated, KindHypothesisMoved:
		return true
	}
	return false
}
