package services

import (
	"context"
	"log/slog"
	"time"

	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/models"
	"ticket-resale/monitoring"
)

const defaultSweepBatch = 200

// SweepService drives the periodic background passes: offer and
// listing expiration, deferred go-live, auto-sell and the escrow
// timeout. Every transition goes through the same atomic units as
// on-demand matching, so a sweep losing a race to a concurrent matcher
// just skips that record.
type SweepService struct {
	store      store.Store
	offers     *OfferService
	listings   *ListingService
	settlement *Settlement

	batchSize   int
	escrowGrace time.Duration
	now         timeFunc
}

func NewSweepService(st store.Store, offers *OfferService, listings *ListingService, settlement *Settlement, escrowGrace time.Duration) *SweepService {
	return &SweepService{
		store:       st,
		offers:      offers,
		listings:    listings,
		settlement:  settlement,
		batchSize:   defaultSweepBatch,
		escrowGrace: escrowGrace,
		now:         time.Now,
	}
}

// RunExpiration expires offers past their deadline and closes out
// events whose start time has passed, expiring their open listings.
func (s *SweepService) RunExpiration(ctx context.Context) {
	now := s.now()
	processed := 0

	offers, err := s.store.ListExpiredActiveOffers(ctx, now, s.batchSize)
	if err != nil {
		slog.Error("sweep: expired offer scan failed", "error", err)
	} else {
		for _, o := range offers {
			if err := s.offers.ExpireOffer(ctx, o.ID); err != nil {
				if !status.IsConflict(err) {
					slog.Error("sweep: offer expiration failed", "offer", o.ID, "error", err)
				}
				continue
			}
			processed++
		}
	}

	events, err := s.store.ListEventsStartedBefore(ctx, now, s.batchSize)
	if err != nil {
		slog.Error("sweep: started event scan failed", "error", err)
	} else {
		for _, e := range events {
			processed += s.closeOutEvent(ctx, e)
		}
	}

	monitoring.TrackSweep("expiration", processed)
	if processed > 0 {
		slog.Info("sweep: expiration pass done", "processed", processed)
	}
}

func (s *SweepService) closeOutEvent(ctx context.Context, event *models.Event) int {
	processed := 0
	listings, err := s.store.ListOpenListingsByEvent(ctx, event.ID)
	if err != nil {
		slog.Error("sweep: open listing scan failed", "event", event.ID, "error", err)
		return 0
	}
	for _, l := range listings {
		if err := s.listings.ExpireListing(ctx, l.ID); err != nil {
			if !status.IsConflict(err) {
				slog.Error("sweep: listing expiration failed", "listing", l.ID, "error", err)
			}
			continue
		}
		processed++
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		e, err := tx.GetEvent(ctx, event.ID)
		if err != nil {
			return err
		}
		if e.Status != models.EventUpcoming {
			return nil
		}
		e.Status = models.EventCompleted
		return tx.SaveEvent(ctx, e)
	})
	if err != nil {
		slog.Error("sweep: event close-out failed", "event", event.ID, "error", err)
		return processed
	}
	return processed + 1
}

// RunGoLive activates draft listings whose deferred go-live time has
// passed.
func (s *SweepService) RunGoLive(ctx context.Context) {
	now := s.now()
	processed := 0

	due, err := s.store.ListGoLiveDueListings(ctx, now, s.batchSize)
	if err != nil {
		slog.Error("sweep: go-live scan failed", "error", err)
		return
	}
	for _, l := range due {
		if _, err := s.listings.GoLive(ctx, l.ID, ""); err != nil {
			if !status.IsConflict(err) {
				slog.Error("sweep: go-live failed", "listing", l.ID, "error", err)
			}
			continue
		}
		processed++
	}

	monitoring.TrackSweep("go_live", processed)
}

// RunAutoSell runs the reverse-match attempt for every listing whose
// auto-sell trigger has passed.
func (s *SweepService) RunAutoSell(ctx context.Context) {
	now := s.now()
	processed := 0

	due, err := s.store.ListAutoSellDueListings(ctx, now, s.batchSize)
	if err != nil {
		slog.Error("sweep: auto-sell scan failed", "error", err)
		return
	}
	for _, l := range due {
		if err := s.listings.AutoSellAttempt(ctx, l.ID); err != nil {
			if !status.IsConflict(err) {
				slog.Error("sweep: auto-sell attempt failed", "listing", l.ID, "error", err)
			}
			continue
		}
		processed++
	}

	monitoring.TrackSweep("auto_sell", processed)
}

// RunEscrowTimeout settles escrow still held after the event started
// plus a grace period: transferred deliveries are force-released to the
// seller, undelivered ones are refunded to the buyer. Disputed
// transactions wait for resolution.
func (s *SweepService) RunEscrowTimeout(ctx context.Context) {
	now := s.now()
	processed := 0

	held, err := s.store.ListHeldEscrowTransactions(ctx, s.batchSize)
	if err != nil {
		slog.Error("sweep: held escrow scan failed", "error", err)
		return
	}
	for _, t := range held {
		if t.HasDispute {
			continue
		}
		event, err := s.store.GetEvent(ctx, t.EventID)
		if err != nil {
			slog.Error("sweep: escrow event lookup failed", "transaction", t.ID, "error", err)
			continue
		}
		if now.Before(event.StartTime.Add(s.escrowGrace)) {
			continue
		}

		switch t.DeliveryStatus {
		case models.DeliveryTransferred:
			err = s.settlement.ForceReleaseEscrow(ctx, t.ID)
		case models.DeliveryPending:
			err = s.settlement.RefundUndelivered(ctx, t.ID)
		default:
			continue
		}
		if err != nil {
			if !status.IsConflict(err) {
				slog.Error("sweep: escrow timeout handling failed", "transaction", t.ID, "error", err)
			}
			continue
		}
		processed++
	}

	monitoring.TrackSweep("escrow_timeout", processed)
	if processed > 0 {
		slog.Info("sweep: escrow timeout pass done", "processed", processed)
	}
}
