package domain

import "time"

type Hypothesis struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Stage          string    `json:"stage"`
	Priority       string    `json:"priority" enum:"low,medium,high,critical"`
	Status         string    `json:"status" enum:"active,paused,completed,cancelled"`
	Owner          string    `json:"owner,omitempty"`
	Team           string    `json:"team,omitempty"`
	Tags           []string  `json:"tags"`
	ExpectedImpact string    `json:"expectedImpact,omitempty"`
	EstimatedValue float64   `json:"estimatedValue"`
	Confidence     int       `json:"confidence"`
	Progress       int       `json:"progress"`
	ApprovalStatus string    `json:"approvalStatus" enum:"none,pending,approved,rejected"`
	ApprovedBy     string    `json:"approvedBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt      time.Time `json:"updatedAt" format:"date-time"`
}

type Experiment struct {
	ID           string             `json:"id"`
	HypothesisID string             `json:"hypothesisId"`
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Status       string             `json:"status" enum:"planned,running,completed,failed"`
	Owner        string             `json:"owner,omitempty"`
	StartDate    *time.Time         `json:"startDate,omitempty" format:"date-time"`
	EndDate      *time.Time         `json:"endDate,omitempty" format:"date-time"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Results      string             `json:"results,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" format:"date-time"`
	UpdatedAt    time.Time          `json:"updatedAt" format:"date-time"`
}

// Stage is one step of the hypothesis lifecycle. Code is the stable key
// hypotheses reference; Name is the display name shown to users.
type Stage struct {
	ID               int       `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Order            int       `json:"order"`
	IsActive         bool      `json:"isActive"`
	RequiresApproval bool      `json:"requiresApproval"`
	Color            string    `json:"color,omitempty"`
	CreatedAt        time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt        time.Time `json:"updatedAt" format:"date-time"`
}

type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       string     `json:"role" enum:"admin,ceo,manager,researcher,viewer"`
	Department string     `json:"department,omitempty"`
	Status     string     `json:"status" enum:"active,inactive"`
	LastLogin  *time.Time `json:"lastLogin,omitempty" format:"date-time"`
	CreatedAt  time.Time  `json:"createdAt" format:"date-time"`
	UpdatedAt  time.Time  `json:"updatedAt" format:"date-time"`
}

type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId,omitempty"`
	Type       string    `json:"type" enum:"info,success,warning,error,approval"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	EntityType string    `json:"entityType,omitempty"`
	EntityID   string    `json:"entityId,omitempty"`
	IsRead     bool      `json:"isRead"`
	IsStarred  bool      `json:"isStarred"`
	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt  time.Time `json:"updatedAt" format:"date-time"`
}

type Settings struct {
	CompanyName          string    `json:"companyName"`
	DefaultPriority      string    `json:"defaultPriority" enum:"low,medium,high,critical"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	EmailNotifications   bool      `json:"emailNotifications"`
	Theme                string    `json:"theme" enum:"light,dark,system"`
	Language             string    `json:"language"`
	UpdatedAt            time.Time `json:"updatedAt" format:"date-time"`
}

type Comment struct {
	ID           string    `json:"id"`
	HypothesisID string    `json:"hypothesisId"`
	Author       string    `json:"author"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt    time.Time `json:"updatedAt" format:"date-time"`
}

type Presentation struct {
	ID           string    `json:"id"`
	HypothesisID string    `json:"hypothesisId"`
	Title        string    `json:"title"`
	Template     string    `json:"template"`
	Status       string    `json:"status" enum:"generating,ready,failed"`
	CreatedAt    time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt    time.Time `json:"updatedAt" format:"date-time"`
}

type File struct {
	ID           string    `json:"id"`
	HypothesisID string    `json:"hypothesisId"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType,omitempty"`
	URL          string    `json:"url,omitempty"`
	UploadedBy   string    `json:"uploadedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt    time.Time `json:"updatedAt" format:"date-time"`
}

type Metric struct {
	ID           string    `json:"id"`
	HypothesisID string    `json:"hypothesisId"`
	Name         string    `json:"name"`
	Value        float64   `json:"value"`
	Target       float64   `json:"target"`
	Unit         string    `json:"unit,omitempty"`
	CreatedAt    time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt    time.Time `json:"updatedAt" format:"date-time"`
}

type Risk struct {
	ID           string    `json:"id"`
	HypothesisID string    `json:"hypothesisId"`
	Title        string    `json:"title"`
	Severity     string    `json:"severity" enum:"low,medium,high"`
	Mitigation   string    `json:"mitigation,omitempty"`
	CreatedAt    time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt    time.Time `json:"updatedAt" format:"date-time"`
}

// TimelineEntry records a notable action on a hypothesis.
type TimelineEntry struct {
	ID           string    `json:"id"`
	HypothesisID string    `json:"hypothesisId"`
	Action       string    `json:"action" enum:"created,updated,stage_changed,commented,approved,rejected,presentation_requested"`
	Description  string    `json:"description"`
	Actor        string    `json:"actor,omitempty"`
	FromStage    string    `json:"fromStage,omitempty"`
	ToStage      string    `json:"toStage,omitempty"`
	CreatedAt    time.Time `json:"createdAt" format:"date-time"`
	UpdatedAt    time.Time `json:"updatedAt" format:"date-time"`
}

// HypothesisDetail is a hypothesis joined with everything attached to it.
type HypothesisDetail struct {
	Hypothesis
	Experiments []Experiment    `json:"experiments"`
	Comments    []Comment       `json:"comments"`
	Files       []File          `json:"files"`
	Metrics     []Metric        `json:"metrics"`
	Risks       []Risk          `json:"risks"`
	Timeline    []TimelineEntry `json:"timeline"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Event is a journaled envelope.
type Event struct {
	ID      int64  `json:"id"`
	UID     string `json:"uid"`
	TS      string `json:"ts" format:"date-time"`
	Type    string `json:"type"`
	Payload string `json:"payloadJson"`
}
