package events

import (
	"context"
	"fmt"
	"time"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/domain/notifications"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Categorized splits approved events by date: today, the rest of the
// Monday-based week, and everything after.
type Categorized struct {
	Current  []Summary `json:"current"`
	ThisWeek []Summary `json:"thisWeek"`
	Next     []Summary `json:"next"`
}

type Page struct {
	Items      []Event
	Pagination notifications.Pagination
}

// WeekRanges returns the three bucket ranges for the civil date of now in loc.
func WeekRanges(now time.Time, loc *time.Location) (today, week, later DateRange) {
	now = now.In(loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	// Sunday is weekday 0, so it ends its own week.
	sunday := day.AddDate(0, 0, (7-int(day.Weekday()))%7)

	today = DateRange{From: day.Format(DateLayout), To: day.Format(DateLayout)}
	week = DateRange{From: day.AddDate(0, 0, 1).Format(DateLayout), To: sunday.Format(DateLayout)}
	later = DateRange{From: sunday.AddDate(0, 0, 1).Format(DateLayout)}
	return today, week, later
}

// Categorized runs the three bucket queries concurrently.
func (e *Engine) Categorized(ctx context.Context) (*Categorized, error) {
	today, week, later := WeekRanges(e.now(), e.loc)
	out := &Categorized{}

	g, gctx := errgroup.WithContext(ctx)
	for _, bucket := range []struct {
		dates DateRange
		dest  *[]Summary
	}{
		{today, &out.Current},
		{week, &out.ThisWeek},
		{later, &out.Next},
	} {
		g.Go(func() error {
			list, err := e.repo.ListApproved(gctx, bucket.dates)
			if err != nil {
				return fmt.Errorf("list approved events: %w", err)
			}
			summaries := make([]Summary, 0, len(list))
			for i := range list {
				summaries = append(summaries, list[i].Summary())
			}
			*bucket.dest = summaries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// List pages through events newest first. A non-empty creatorID limits the
// list to that admin's events.
func (e *Engine) List(ctx context.Context, creatorID string, page, limit int) (*Page, error) {
	if page < 1 {
		return nil, apperr.Validation("page", "page must be at least 1")
	}
	if limit < 1 || limit > MaxPageSize {
		return nil, apperr.Validation("limit", fmt.Sprintf("limit must be between 1 and %d", MaxPageSize))
	}

	items, total, err := e.repo.ListEvents(ctx, ListFilter{CreatorID: creatorID, Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if items == nil {
		items = []Event{}
	}
	return &Page{Items: items, Pagination: notifications.NewPagination(total, page, limit)}, nil
}

// View is what GET /events returns for a viewer. Exactly one field is set.
type View struct {
	Categorized *Categorized
	Page        *Page
}

// ViewFor picks the listing strategy by role.
func (e *Engine) ViewFor(ctx context.Context, viewer auth.Identity, page, limit int) (*View, error) {
	switch viewer.Role {
	case auth.RoleStudent:
		c, err := e.Categorized(ctx)
		if err != nil {
			return nil, err
		}
		return &View{Categorized: c}, nil
	case auth.RoleAdmin:
		p, err := e.List(ctx, viewer.UserID, page, limit)
		if err != nil {
			return nil, err
		}
		return &View{Page: p}, nil
	case auth.RoleSuperAdmin:
		p, err := e.List(ctx, "", page, limit)
		if err != nil {
			return nil, err
		}
		return &View{Page: p}, nil
	default:
		return nil, apperr.Forbidden("Your role cannot view events.")
	}
}
