package clinic

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"clinic-booking-api/internal/model"
)

type Strategy int

const (
	// StrategyDiff reads options and bookings separately and diffs them here.
	StrategyDiff Strategy = iota
	// StrategyQuery lets the store join and subtract.
	StrategyQuery
)

func (st Strategy) String() string {
	if st == StrategyQuery {
		return "query"
	}
	return "diff"
}

var dateLayouts = []string{"2006-01-02", "Jan 2, 2006", "January 2, 2006", "2006/01/02"}

// NormalizeDate maps the accepted calendar formats onto 2006-01-02.
// Anything unparseable comes back trimmed but otherwise untouched, so it
// simply matches no bookings.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}

// Availability returns every option with the slots still open on date.
// Both strategies yield the same result for the same state.
func (s *Service) Availability(ctx context.Context, date string, st Strategy) ([]model.Availability, error) {
	date = NormalizeDate(date)
	ctx, span := s.tracer.Start(ctx, "clinic.Availability")
	defer span.End()
	span.SetAttributes(attribute.String("date", date), attribute.String("strategy", st.String()))

	var (
		out []model.Availability
		err error
	)
	if st == StrategyQuery {
		out, err = s.gw.RemainingSlots(ctx, date)
	} else {
		out, err = s.availabilityByDiff(ctx, date)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for i := range out {
		if out[i].Slots == nil {
			out[i].Slots = []string{}
		}
	}
	if out == nil {
		out = []model.Availability{}
	}
	return out, nil
}

func (s *Service) availabilityByDiff(ctx context.Context, date string) ([]model.Availability, error) {
	opts, err := s.gw.ListOptions(ctx)
	if err != nil {
		return nil, err
	}
	booked, err := s.gw.BookingsOnDate(ctx, date)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]map[string]struct{})
	for _, b := range booked {
		if taken[b.Treatment] == nil {
			taken[b.Treatment] = make(map[string]struct{})
		}
		taken[b.Treatment][b.Slot] = struct{}{}
	}

	out := make([]model.Availability, 0, len(opts))
	for _, o := range opts {
		out = append(out, model.Availability{
			ID:    o.ID,
			Name:  o.Name,
			Price: o.Price,
			Slots: RemainingSlots(o.Slots, taken[o.Name]),
		})
	}
	return out, nil
}

// RemainingSlots filters catalog down to the labels not in taken, keeping catalog order.
func RemainingSlots(catalog []string, taken map[string]struct{}) []string {
	out := make([]string, 0, len(catalog))
	for _, sl := range catalog {
		if _, ok := taken[sl]; !ok {
			out = append(out, sl)
		}
	}
	return out
}

func (s *Service) TreatmentNames(ctx context.Context) ([]model.Treatment, error) {
	out, err := s.gw.TreatmentNames(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Treatment{}
	}
	return out, nil
}
