package server

import (
	"time"

	"hypolab/internal/domain"
	"hypolab/internal/store"
)

// Request bodies mark every field omitempty so missing fields reach the
// store validation and its messages.

type HypothesisCreateRequest struct {
	Title          string   `json:"title,omitempty" example:"Churn prediction reduces cancellations"`
	Description    string   `json:"description,omitempty"`
	Stage          string   `json:"stage,omitempty" example:"ideation"`
	Priority       string   `json:"priority,omitempty" example:"medium"`
	Status         string   `json:"status,omitempty"`
	Owner          string   `json:"owner,omitempty"`
	Team           string   `json:"team,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	ExpectedImpact string   `json:"expectedImpact,omitempty"`
	EstimatedValue float64  `json:"estimatedValue,omitempty"`
	Confidence     int      `json:"confidence,omitempty"`
}

func (r HypothesisCreateRequest) input(actor string) store.HypothesisInput {
	return store.HypothesisInput{
		Title:          r.Title,
		Description:    r.Description,
		Stage:          r.Stage,
		Priority:       r.Priority,
		Status:         r.Status,
		Owner:          r.Owner,
		Team:           r.Team,
		Tags:           r.Tags,
		ExpectedImpact: r.ExpectedImpact,
		EstimatedValue: r.EstimatedValue,
		Confidence:     r.Confidence,
		Actor:          actor,
	}
}

type HypothesisUpdateRequest struct {
	Title          *string   `json:"title,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Stage          *string   `json:"stage,omitempty"`
	Priority       *string   `json:"priority,omitempty"`
	Status         *string   `json:"status,omitempty"`
	Owner          *string   `json:"owner,omitempty"`
	Team           *string   `json:"team,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
	ExpectedImpact *string   `json:"expectedImpact,omitempty"`
	EstimatedValue *float64  `json:"estimatedValue,omitempty"`
	Confidence     *int      `json:"confidence,omitempty"`
	Progress       *int      `json:"progress,omitempty"`
}

func (r HypothesisUpdateRequest) patch(actor string) store.HypothesisPatch {
	return store.HypothesisPatch{
		Title:          r.Title,
		Description:    r.Description,
		Stage:          r.Stage,
		Priority:       r.Priority,
		Status:         r.Status,
		Owner:          r.Owner,
		Team:           r.Team,
		Tags:           r.Tags,
		ExpectedImpact: r.ExpectedImpact,
		EstimatedValue: r.EstimatedValue,
		Confidence:     r.Confidence,
		Progress:       r.Progress,
		Actor:          actor,
	}
}

type MoveRequest struct {
	HypothesisID string `json:"hypothesisId,omitempty" example:"HYP-001"`
	NewStage     string `json:"newStage,omitempty" example:"scoping"`
	Comment      string `json:"comment,omitempty"`
}

type CommentRequest struct {
	Content string `json:"content,omitempty"`
	Author  string `json:"author,omitempty"`
}

type PresentationRequest struct {
	Title    string `json:"title,omitempty"`
	Template string `json:"template,omitempty" example:"executive"`
}

type ExperimentCreateRequest struct {
	HypothesisID string             `json:"hypothesisId,omitempty" example:"HYP-001"`
	Name         string             `json:"name,omitempty"`
	Description  string             `json:"description,omitempty"`
	Status       string             `json:"status,omitempty" example:"planned"`
	Owner        string             `json:"owner,omitempty"`
	StartDate    *time.Time         `json:"startDate,omitempty"`
	EndDate      *time.Time         `json:"endDate,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

type ExperimentUpdateRequest struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Status      *string            `json:"status,omitempty"`
	Owner       *string            `json:"owner,omitempty"`
	StartDate   *time.Time         `json:"startDate,omitempty"`
	EndDate     *time.Time         `json:"endDate,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Results     *string            `json:"results,omitempty"`
}

type StageUpdateRequest struct {
	Name             *string `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	IsActive         *bool   `json:"isActive,omitempty"`
	RequiresApproval *bool   `json:"requiresApproval,omitempty"`
	Color            *string `json:"color,omitempty"`
}

type StageOrderRequest struct {
	Direction string `json:"direction,omitempty" example:"up"`
}

type UserCreateRequest struct {
	Email      string `json:"email,omitempty" example:"maria@hypolab.local"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty" example:"researcher"`
	Department string `json:"department,omitempty"`
	Status     string `json:"status,omitempty"`
}

type UserUpdateRequest struct {
	Email      *string `json:"email,omitempty"`
	Name       *string `json:"name,omitempty"`
	Role       *string `json:"role,omitempty"`
	Department *string `json:"department,omitempty"`
	Status     *string `json:"status,omitempty"`
}

type NotificationCreateRequest struct {
	UserID     string `json:"userId,omitempty"`
	Type       string `json:"type,omitempty" example:"info"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	EntityType string `json:"entityType,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
}

type SettingsUpdateRequest struct {
	CompanyName          *string `json:"companyName,omitempty"`
	DefaultPriority      *string `json:"defaultPriority,omitempty"`
	NotificationsEnabled *bool   `json:"notificationsEnabled,omitempty"`
	EmailNotifications   *bool   `json:"emailNotifications,omitempty"`
	Theme                *string `json:"theme,omitempty"`
	Language             *string `json:"language,omitempty"`
}

type DecisionRequest struct {
	Action string `json:"action,omitempty" example:"approved"`
}

// Page is a paginated list response.
type Page[T any] struct {
	Data       []T               `json:"data"`
	Pagination domain.Pagination `json:"pagination"`
}

func paginate[T any](items []T, page, limit int) Page[T] {
	data, p := store.Paginate(items, page, limit)
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, Pagination: p}
}

type idPath struct {
	ID string `path:"id"`
}

type DeletedResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type ReadAllResponse struct {
	Count int `json:"count"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type EventResponse struct {
	ID      int64  `json:"id"`
	UID     string `json:"uid"`
	TS      string `json:"ts" format:"date-time"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
