package store

import (
	"strings"

	"hypolab/internal/domain"
)

var (
	userRoles    = []string{"admin", "ceo", "manager", "researcher", "viewer"}
	userStatuses = []string{"active", "inactive"}
)

type UserInput struct {
	Email      string
	Name       string
	Role       string
	Department string
	Status     string
}

type UserPatch struct {
	Email      *string
	Name       *string
	Role       *string
	Department *string
	Status     *string
}

type UserFilter struct {
	Search string
	Role   string
	Status string
}

func (f UserFilter) Match(u domain.User) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			return false
		}
	}
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	return true
}

// Roles is the fixed IAM role catalog.
func Roles() []domain.Role {
	return []domain.Role{
		{ID: "admin", Name: "Administrator", Description: "Full access including stage and user management", Permissions: []string{"*"}},
		{ID: "ceo", Name: "CEO", Description: "Executive reporting and approvals", Permissions: []string{"hypotheses.read", "ceo.read", "ceo.approve"}},
		{ID: "manager", Name: "Manager", Description: "Manages hypotheses and experiments", Permissions: []string{"hypotheses.read", "hypotheses.write", "experiments.write"}},
		{ID: "researcher", Name: "Researcher", Description: "Runs experiments", Permissions: []string{"hypotheses.read", "experiments.write"}},
		{ID: "viewer", Name: "Viewer", Description: "Read-only access", Permissions: []string{"hypotheses.read"}},
	}
}

func (s *Store) emailTaken(email, exceptID string) bool {
	for _, u := range s.users.items {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func validateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return invalid("email", "Invalid email address")
	}
	return nil
}

func (s *Store) CreateUser(in UserInput) (domain.User, error) {
	email := strings.TrimSpace(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" {
		return domain.User{}, invalid("email", "Email and name are required")
	}
	if err := validateEmail(email); err != nil {
		return domain.User{}, err
	}
	role := in.Role
	if role == "" {
		role = "viewer"
	}
	if !oneOf(role, userRoles) {
		return domain.User{}, invalid("role", "Invalid role %q", role)
	}
	status := in.Status
	if status == "" {
		status = "active"
	}
	if !oneOf(status, userStatuses) {
		return domain.User{}, invalid("status", "Invalid status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(email, "") {
		return domain.User{}, ConflictError{Field: "email", Message: "User with this email already exists"}
	}
	now := s.now()
	u := domain.User{
		ID:         s.newID(),
		Email:      email,
		Name:       name,
		Role:       role,
		Department: in.Department,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.users.insert(u)
	return u, nil
}

func (s *Store) GetUser(id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users.get(id)
	if !ok {
		return domain.User{}, notFound("User", id)
	}
	return u, nil
}

func (s *Store) UserByEmail(email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users.items {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return cloneUser(u), nil
		}
	}
	return domain.User{}, notFound("User", email)
}

func (s *Store) ListUsers(f UserFilter) []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.find(f.Match)
}

func (s *Store) UpdateUser(id string, patch UserPatch) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.users.index(id)
	if i < 0 {
		return domain.User{}, notFound("User", id)
	}
	u := cloneUser(s.users.items[i])
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if err := validateEmail(email); err != nil {
			return domain.User{}, err
		}
		if s.emailTaken(email, id) {
			return domain.User{}, ConflictError{Field: "email", Message: "User with this email already exists"}
		}
		u.Email = email
	}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return domain.User{}, invalid("name", "Name cannot be empty")
		}
		u.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Role != nil {
		if !oneOf(*patch.Role, userRoles) {
			return domain.User{}, invalid("role", "Invalid role %q", *patch.Role)
		}
		u.Role = *patch.Role
	}
	if patch.Department != nil {
		u.Department = *patch.Department
	}
	if patch.Status != nil {
		if !oneOf(*patch.Status, userStatuses) {
			return domain.User{}, invalid("status", "Invalid status %q", *patch.Status)
		}
		u.Status = *patch.Status
	}
	u.UpdatedAt = s.now()
	s.users.set(i, u)
	return u, nil
}

func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users.remove(id) {
		return notFound("User", id)
	}
	return nil
}
