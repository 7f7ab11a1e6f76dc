package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"clinic-booking-api/internal/model"
)

type Decision int

const (
	Forbidden Decision = iota
	Authorized
)

func (d Decision) String() string {
	if d == Authorized {
		return "authorized"
	}
	return "forbidden"
}

// RoleLookup is the result of reading a user's role: Found with a role, or not found.
type RoleLookup struct {
	Found bool
	Role  model.Role
}

// Authorize is total over RoleLookup: only a found user holding want passes.
func Authorize(l RoleLookup, want model.Role) Decision {
	if l.Found && l.Role == want {
		return Authorized
	}
	return Forbidden
}

func (s *Service) LookupRole(ctx context.Context, email string) (RoleLookup, error) {
	u, err := s.gw.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, model.ErrNotFound) {
		return RoleLookup{}, nil
	}
	if err != nil {
		return RoleLookup{}, err
	}
	return RoleLookup{Found: true, Role: u.Role}, nil
}

func (s *Service) RequireRole(ctx context.Context, email string, want model.Role) (Decision, error) {
	l, err := s.LookupRole(ctx, email)
	if err != nil {
		return Forbidden, err
	}
	return Authorize(l, want), nil
}

func (s *Service) IsAdmin(ctx context.Context, email string) (bool, error) {
	d, err := s.RequireRole(ctx, email, model.RoleAdmin)
	return d == Authorized, err
}

type Registration struct {
	User            *model.User `json:"user"`
	Created         bool        `json:"created"`
	PromotedToAdmin bool        `json:"promotedToAdmin"`
}

// RegisterUser creates a user on first sign-in. The very first user ever
// registered becomes admin; the store decides that atomically with the insert.
func (s *Service) RegisterUser(ctx context.Context, email, name string) (Registration, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Registration{}, fmt.Errorf("%w: email required", model.ErrInvalid)
	}

	ctx, span := s.tracer.Start(ctx, "clinic.RegisterUser")
	defer span.End()

	u := &model.User{Email: email, Name: strings.TrimSpace(name), Role: model.RoleNone}
	created, promoted, err := s.gw.RegisterUser(ctx, u)
	if err != nil {
		span.RecordError(err)
		return Registration{}, err
	}
	span.SetAttributes(attribute.Bool("created", created), attribute.Bool("promoted", promoted))
	if promoted {
		s.log.Info().Str("user_id", u.ID).Msg("first user promoted to admin")
	}
	return Registration{User: u, Created: created, PromotedToAdmin: promoted}, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	out, err := s.gw.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.User{}
	}
	return out, nil
}

// PromoteUser grants admin to an existing user; callers gate this behind RequireRole.
func (s *Service) PromoteUser(ctx context.Context, id string) error {
	return s.gw.PromoteUser(ctx, id)
}
