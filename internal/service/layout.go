package service

import (
	"context"
	"strings"

	"github.com/iliyamo/live-event-booking/internal/clock"
	"github.com/iliyamo/live-event-booking/internal/model"
)

// maxSectionSide bounds rows and columns of a single section.
const maxSectionSide = 1000

// SectionSpec describes one section of a layout to create.
type SectionSpec struct {
	Name     string `json:"name"`
	Rows     uint32 `json:"rows"`
	Columns  uint32 `json:"columns"`
	Priority int    `json:"priority"`
}

// LayoutService manages venues and their seat layouts.  A layout edit only
// changes the template; events already created keep their seat maps.
type LayoutService struct {
	venues VenueStore
	clock  clock.Clock
	opts   options
}

// NewLayoutService wires a LayoutService.
func NewLayoutService(venues VenueStore, clk clock.Clock, opts ...Option) *LayoutService {
	return &LayoutService{venues: venues, clock: clk, opts: buildOptions(opts)}
}

// CreateVenue registers a venue managed by the caller.
func (s *LayoutService) CreateVenue(ctx context.Context, caller model.Caller, name string, specs []SectionSpec) (*model.Venue, error) {
	if !caller.Is(model.RoleVenueManager, model.RoleAdmin) {
		return nil, newErr(KindForbidden, "only venue managers can create venues")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newErr(KindValidation, "name is required")
	}
	sections, err := buildSections(specs)
	if err != nil {
		return nil, err
	}
	v := &model.Venue{ManagerID: caller.ID, Name: name, Sections: sections}
	if err := s.venues.CreateVenue(ctx, v); err != nil {
		return nil, fromStore("create venue", err)
	}
	s.opts.log.Info().Uint64("venue_id", v.ID).Uint64("manager_id", caller.ID).Int("capacity", v.Capacity()).Msg("venue created")
	return v, nil
}

// GetVenue returns a venue with its layout template.
func (s *LayoutService) GetVenue(ctx context.Context, id uint64) (*model.Venue, error) {
	v, err := s.venues.GetVenue(ctx, id)
	if err != nil {
		return nil, fromStore("get venue", err)
	}
	return v, nil
}

// EditLayout regenerates the venue's layout from specs.
func (s *LayoutService) EditLayout(ctx context.Context, caller model.Caller, venueID uint64, specs []SectionSpec) (*model.Venue, error) {
	v, err := s.venues.GetVenue(ctx, venueID)
	if err != nil {
		return nil, fromStore("edit layout", err)
	}
	if !caller.Is(model.RoleAdmin) && !(caller.Is(model.RoleVenueManager) && v.ManagerID == caller.ID) {
		return nil, newErr(KindForbidden, "only the venue's manager can edit its layout")
	}
	sections, err := buildSections(specs)
	if err != nil {
		return nil, err
	}
	if err := s.venues.ReplaceLayout(ctx, venueID, sections); err != nil {
		return nil, fromStore("edit layout", err)
	}
	v.Sections = sections
	v.UpdatedAt = s.clock.Now()
	s.opts.log.Info().Uint64("venue_id", venueID).Int("capacity", v.Capacity()).Msg("venue layout replaced")
	return v, nil
}

func buildSections(specs []SectionSpec) ([]model.Section, error) {
	if len(specs) == 0 {
		return nil, newErr(KindValidation, "at least one section is required")
	}
	seen := make(map[string]bool, len(specs))
	out := make([]model.Section, 0, len(specs))
	for _, sp := range specs {
		name := strings.TrimSpace(sp.Name)
		if name == "" {
			return nil, newErr(KindValidation, "section name is required")
		}
		if seen[name] {
			return nil, newErr(KindValidation, "duplicate section %q", name)
		}
		seen[name] = true
		if sp.Rows == 0 || sp.Columns == 0 || sp.Rows > maxSectionSide || sp.Columns > maxSectionSide {
			return nil, newErr(KindValidation, "section %q: rows and columns must be between 1 and %d", name, maxSectionSide)
		}
		out = append(out, model.NewSection(name, sp.Rows, sp.Columns, sp.Priority))
	}
	return out, nil
}
