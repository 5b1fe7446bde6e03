package store

import (
	"strings"

	"hypolab/internal/domain"
)

const (
	FilterAll      = "all"
	FilterUnread   = "unread"
	FilterRead     = "read"
	FilterStarred  = "starred"
	FilterArchived = "archived"
)

var notificationTypes = []string{"info", "success", "warning", "error", "approval"}

type NotificationInput struct {
	UserID     string
	Type       string
	Title      string
	Message    string
	EntityType string
	EntityID   string
}

func notificationFilter(filter string) (func(domain.Notification) bool, error) {
	switch filter {
	case "", FilterAll:
		return func(n domain.Notification) bool { return !n.IsArchived }, nil
	case FilterUnread:
		return func(n domain.Notification) bool { return !n.IsArchived && !n.IsRead }, nil
	case FilterRead:
		return func(n domain.Notification) bool { return !n.IsArchived && n.IsRead }, nil
	case FilterStarred:
		return func(n domain.Notification) bool { return !n.IsArchived && n.IsStarred }, nil
	case FilterArchived:
		return func(n domain.Notification) bool { return n.IsArchived }, nil
	default:
		return nil, invalid("filter", "Invalid filter %q", filter)
	}
}

// ListNotifications returns notifications matching filter, newest first.
// An empty userID matches every user.
func (s *Store) ListNotifications(filter, userID string) ([]domain.Notification, error) {
	match, err := notificationFilter(filter)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.notifications.find(func(n domain.Notification) bool {
		if userID != "" && n.UserID != "" && n.UserID != userID {
			return false
		}
		return match(n)
	})
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.notifications.items {
		if !item.IsRead && !item.IsArchived {
			n++
		}
	}
	return n
}

func (s *Store) CreateNotification(in NotificationInput) (domain.Notification, error) {
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	if title == "" || message == "" {
		return domain.Notification{}, invalid("title", "Title and message are required")
	}
	typ := in.Type
	if typ == "" {
		typ = "info"
	}
	if !oneOf(typ, notificationTypes) {
		return domain.Notification{}, invalid("type", "Invalid notification type %q", typ)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := domain.Notification{
		ID:         s.newID(),
		UserID:     in.UserID,
		Type:       typ,
		Title:      title,
		Message:    message,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.notifications.insert(n)
	return n, nil
}

func (s *Store) GetNotification(id string) (domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications.get(id)
	if !ok {
		return domain.Notification{}, notFound("Notification", id)
	}
	return n, nil
}

func (s *Store) mutateNotification(id string, fn func(*domain.Notification)) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.notifications.index(id)
	if i < 0 {
		return domain.Notification{}, notFound("Notification", id)
	}
	n := s.notifications.items[i]
	fn(&n)
	n.UpdatedAt = s.now()
	s.notifications.set(i, n)
	return n, nil
}

// MarkRead is idempotent: marking an already read notification succeeds.
func (s *Store) MarkRead(id string) (domain.Notification, error) {
	return s.mutateNotification(id, func(n *domain.Notification) { n.IsRead = true })
}

func (s *Store) ToggleStar(id string) (domain.Notification, error) {
	return s.mutateNotification(id, func(n *domain.Notification) { n.IsStarred = !n.IsStarred })
}

func (s *Store) Archive(id string) (domain.Notification, error) {
	return s.mutateNotification(id, func(n *domain.Notification) { n.IsArchived = true })
}

// MarkAllRead marks every unread notification read and returns how many changed.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	changed := 0
	for i, n := range s.notifications.items {
		if n.IsRead {
			continue
		}
		n.IsRead = true
		n.UpdatedAt = now
		s.notifications.set(i, n)
		changed++
	}
	return changed
}

func (s *Store) DeleteNotification(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.notifications.remove(id) {
		return notFound("Notification", id)
	}
	return nil
}
