package core

import (
	"context"
	"log/slog"

	"FacilityBot/bot/chat"
	"FacilityBot/entity"
	"FacilityBot/internal/lib/sl"
)

// CustomerLookup asks each source in turn and returns the first
// non-empty identity. Failing sources are skipped.
type CustomerLookup struct {
	sources []chat.CustomerLookup
	log     *slog.Logger
}

func NewCustomerLookup(log *slog.Logger, sources ...chat.CustomerLookup) *CustomerLookup {
	l := &CustomerLookup{log: log.With(sl.Module("customer-lookup"))}
	for _, s := range sources {
		if s != nil {
			l.sources = append(l.sources, s)
		}
	}
	return l
}

func (l *CustomerLookup) LookupByPhone(ctx context.Context, phone string) (entity.CustomerInfo, error) {
	for _, s := range l.sources {
		info, err := s.LookupByPhone(ctx, phone)
		if err != nil {
			l.log.Warn("customer lookup failed", sl.Phone(phone), sl.Err(err))
			continue
		}
		if !info.IsEmpty() {
			return info, nil
		}
	}
	return entity.CustomerInfo{}, nil
}
