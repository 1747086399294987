package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/choretide/gamification/internal/model"
	engineService "github.com/choretide/gamification/internal/modules/engine/service"
	ledgerRepo "github.com/choretide/gamification/internal/modules/ledger/repository"
	progressRepo "github.com/choretide/gamification/internal/modules/progress/repository"
	progressService "github.com/choretide/gamification/internal/modules/progress/service"
	"github.com/choretide/gamification/internal/scoring"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// consistencyBasePoints is the flat weekly bonus before the consistency
// multiplier is applied.
const consistencyBasePoints = 50

// ReconcileService owns the background sweeps: ledger-vs-aggregate drift
// repair, unlock re-evaluation, and the weekly consistency bonus.
type ReconcileService interface {
	Start()
	Stop()
	SweepOnce(ctx context.Context) error
	AwardConsistencyBonuses(ctx context.Context, now time.Time) error
}

type reconcileService struct {
	runner   engineService.TxRunner
	ledger   ledgerRepo.LedgerRepository
	progress progressRepo.ProgressRepository
	engine   engineService.EngineService

	cron            *cron.Cron
	sweepSpec       string
	consistencySpec string
}

func NewReconcileService(
	runner engineService.TxRunner,
	ledger ledgerRepo.LedgerRepository,
	progress progressRepo.ProgressRepository,
	engine engineService.EngineService,
	sweepSpec, consistencySpec string,
) ReconcileService {
	return &reconcileService{
		runner:          runner,
		ledger:          ledger,
		progress:        progress,
		engine:          engine,
		cron:            cron.New(),
		sweepSpec:       sweepSpec,
		consistencySpec: consistencySpec,
	}
}

func (s *reconcileService) Start() {
	if _, err := s.cron.AddFunc(s.sweepSpec, func() {
		if err := s.SweepOnce(context.Background()); err != nil {
			log.Printf("reconciliation sweep failed: %v", err)
		}
	}); err != nil {
		log.Printf("invalid sweep schedule %q: %v", s.sweepSpec, err)
	}

	if _, err := s.cron.AddFunc(s.consistencySpec, func() {
		if err := s.AwardConsistencyBonuses(context.Background(), time.Now()); err != nil {
			log.Printf("consistency bonus run failed: %v", err)
		}
	}); err != nil {
		log.Printf("invalid consistency schedule %q: %v", s.consistencySpec, err)
	}

	s.cron.Start()
	log.Printf("⏰ reconciliation jobs scheduled (sweep %q, consistency %q)", s.sweepSpec, s.consistencySpec)
}

func (s *reconcileService) Stop() {
	s.cron.Stop()
}

// SweepOnce walks every user seen in the ledger, repairs balance drift
// between the ledger sum and the aggregate, and re-runs unlock evaluation.
// The sweep keeps going past per-user failures so one bad row cannot stall
// the rest.
func (s *reconcileService) SweepOnce(ctx context.Context) error {
	userIDs, err := s.ledger.UserIDs(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, userID := range userIDs {
		if err := s.repairUser(ctx, userID); err != nil {
			log.Printf("reconcile user %s: %v", userID, err)
			failed++
			continue
		}
		if err := s.engine.ReEvaluate(ctx, userID); err != nil {
			log.Printf("re-evaluate user %s: %v", userID, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("reconciliation finished with %d failed users of %d", failed, len(userIDs))
	}
	log.Printf("🔄 reconciliation sweep complete: %d users checked", len(userIDs))
	return nil
}

// repairUser resets the aggregate balance to the ledger sum when they
// disagree. The ledger is the source of truth; the aggregate is a cache.
func (s *reconcileService) repairUser(ctx context.Context, userID uuid.UUID) error {
	return s.runner.RunInTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		progress := s.progress.WithTx(tx)

		p, err := progress.Get(ctx, userID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil
			}
			return err
		}

		sum, err := ledger.SumFor(ctx, userID)
		if err != nil {
			return err
		}
		if sum == p.CurrentPoints {
			return nil
		}

		log.Printf("⚠️ balance drift for user %s: aggregate %d, ledger %d", userID, p.CurrentPoints, sum)
		p.CurrentPoints = sum
		return progress.Update(ctx, p)
	})
}

// AwardConsistencyBonuses grants the weekly bonus scaled by how many of the
// last seven days the user was active. The correlation id encodes the ISO
// week, so re-running the job in the same week is a no-op.
func (s *reconcileService) AwardConsistencyBonuses(ctx context.Context, now time.Time) error {
	rows, err := s.progress.All(ctx)
	if err != nil {
		return err
	}

	year, week := now.ISOWeek()
	since := now.AddDate(0, 0, -7)

	var awarded int
	for i := range rows {
		p := &rows[i]

		activeDays, err := s.ledger.ActiveDays(ctx, p.UserID, since)
		if err != nil {
			log.Printf("consistency bonus for user %s: %v", p.UserID, err)
			continue
		}

		multiplier := scoring.ConsistencyMultiplier(activeDays, 7)
		if multiplier <= 1.0 {
			continue
		}
		amount := int(math.Round(consistencyBasePoints * multiplier))

		correlationID := fmt.Sprintf("consistency:%s:%d-W%02d", p.UserID, year, week)
		err = s.runner.RunInTx(ctx, func(tx *gorm.DB) error {
			ledger := s.ledger.WithTx(tx)
			progress := s.progress.WithTx(tx)

			fresh, err := progress.Get(ctx, p.UserID)
			if err != nil {
				return err
			}

			entry := &model.PointTransaction{
				UserID:        p.UserID,
				Amount:        amount,
				Type:          model.TxBonus,
				Reason:        fmt.Sprintf("Consistency bonus (%d/7 active days)", activeDays),
				CorrelationID: &correlationID,
				CreatedAt:     now,
			}
			if err := ledger.Append(ctx, entry); err != nil {
				return err
			}

			progressService.Apply(fresh, entry)
			return progress.Update(ctx, fresh)
		})
		if err != nil {
			if errors.Is(err, apperror.ErrDuplicateEvent) {
				continue // already granted this week
			}
			log.Printf("consistency bonus for user %s: %v", p.UserID, err)
			continue
		}
		awarded++
	}

	log.Printf("🎁 consistency bonuses awarded to %d of %d users", awarded, len(rows))
	return nil
}
