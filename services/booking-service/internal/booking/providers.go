package booking

import (
	"context"

	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

func (s *Service) GetProvider(ctx context.Context, providerID string) (model.Provider, error) {
	p, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return model.Provider{}, readErr(err, "provider %s", providerID)
	}
	return p, nil
}

// ListProvidersWithAvailability is the directory requesters browse: every
// provider with the weekdays they work.
func (s *Service) ListProvidersWithAvailability(ctx context.Context) ([]model.ProviderDirectoryEntry, error) {
	providers, err := s.store.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.ProviderDirectoryEntry, 0, len(providers))
	for _, p := range providers {
		rows, err := s.store.ListAvailability(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ProviderDirectoryEntry{Provider: p, Availability: rows})
	}
	return out, nil
}

// UpdateProviderProfile applies updates to the caller's own profile in order.
func (s *Service) UpdateProviderProfile(ctx context.Context, actor Actor, providerID string, updates []model.ProviderUpdate) (res Result, err error) {
	ctx, span := s.start(ctx, "booking.update_provider", attribute.String("provider_id", providerID))
	defer func() { finish(span, res, err) }()

	if !actor.IsProvider() || actor.ID != providerID {
		return refuse(KindForbidden, "You can only update your own profile"), nil
	}
	if len(updates) == 0 {
		return refuse(KindValidation, "No profile fields to update"), nil
	}
	for _, u := range updates {
		if m, isCap := u.(model.SetMaxAppointmentsPerDay); isCap && m < 0 {
			return refuse(KindValidation, "max_appointments_per_day cannot be negative"), nil
		}
	}

	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		cur, err := tx.GetProvider(ctx, providerID)
		if err != nil {
			if storage.IsNotFound(err) {
				return abort(KindNotFound, "Provider not found")
			}
			return err
		}
		return tx.SaveProvider(ctx, model.ApplyProviderUpdates(cur, updates))
	})
	if err == nil {
		s.logger.Info("provider profile updated", "provider_id", providerID, "fields", len(updates))
	}
	return settle(err, ok(providerID, "Profile updated successfully"))
}
