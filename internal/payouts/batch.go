package payouts

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/money"
	"github.com/hearthforge/backend/internal/payouts/railclient"
	"github.com/hearthforge/backend/internal/storage"
)

// staleInTransitAge is how long a payout may sit in_transit before the
// batch job gives up on it and marks it failed (spec.md §4.F step 1).
const staleInTransitAge = 30 * 24 * time.Hour

// BatchJob implements the nightly ad-revenue payout split (spec.md §4.F).
// One instance serves the whole process; Run is safe to invoke from a
// cron-style scheduler since step 2's idempotence check makes every
// invocation safe to retry.
type BatchJob struct {
	store     storage.Store
	analytics AnalyticsStore
	aditude   *railclient.AditudeClient
	fees      money.FeeModel
	availabilityDays int
}

// NewBatchJob wires a BatchJob from its dependencies.
func NewBatchJob(store storage.Store, analytics AnalyticsStore, aditude *railclient.AditudeClient, fees money.FeeModel, availabilityDays int) *BatchJob {
	return &BatchJob{store: store, analytics: analytics, aditude: aditude, fees: fees, availabilityDays: availabilityDays}
}

// Run executes one pass of the batch job for "yesterday" relative to now.
func (j *BatchJob) Run(ctx context.Context, now time.Time) error {
	log := zerolog.Ctx(ctx)

	if n, err := j.store.MarkStaleInTransitPayoutsFailed(ctx, now.Add(-staleInTransitAge)); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "mark stale in-transit payouts failed", err)
	} else if n > 0 {
		log.Warn().Int64("count", n).Msg("payouts.stale_in_transit_marked_failed")
	}

	windowStart := startOfDay(now).AddDate(0, 0, -1)
	windowEnd := startOfDay(now)

	alreadyRan, err := j.store.HasPayoutValuesForDate(ctx, windowStart)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "check payout idempotence", err)
	}
	if alreadyRan {
		log.Info().Time("created_date", windowStart).Msg("payouts.batch_already_ran")
		return nil
	}

	viewsByProject, totalViews, err := j.analytics.ProjectViewCounts(ctx, windowStart, windowEnd)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAnalytics, "query project view counts", err)
	}
	downloadsByProject, totalDownloads, err := j.analytics.ProjectDownloadCounts(ctx, windowStart, windowEnd)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAnalytics, "query project download counts", err)
	}

	combined := make(map[int64]int64, len(viewsByProject))
	for p, v := range viewsByProject {
		combined[p] = v
	}
	for p, d := range downloadsByProject {
		combined[p] += d
	}
	totalCombined := totalViews + totalDownloads
	if totalCombined <= 0 {
		log.Info().Msg("payouts.batch_no_activity")
		return nil
	}

	metrics, err := j.aditude.FetchYesterday(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAnalytics, "fetch aditude metrics", err)
	}
	revenue, err := money.Parse(metrics.Revenue)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAnalytics, "parse aditude revenue", err)
	}
	payoutPool := j.fees.NetRevenueFromReported(revenue, metrics.Impressions)
	if payoutPool.IsZero() || payoutPool.IsNegative() {
		log.Info().Msg("payouts.batch_zero_pool")
		return nil
	}

	projects, err := j.store.ListMonetizedProjects(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "list monetized projects", err)
	}

	var rows []*storage.PayoutValue
	for _, project := range projects {
		count, ok := combined[project.ID]
		if !ok || count <= 0 {
			continue
		}

		members, err := j.teamSplits(ctx, project)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			continue
		}

		projectShare := money.MustParse(itoaInt64(count)).Div(money.MustParse(itoaInt64(totalCombined)))
		projectPool := money.RoundCents(payoutPool.Mul(projectShare))

		weights := make([]money.Amount, len(members))
		sumSplit := int64(0)
		for _, m := range members {
			sumSplit += m.Split
		}
		allZero := sumSplit == 0
		for i, m := range members {
			if allZero {
				weights[i] = money.MustParse("1")
			} else {
				weights[i] = money.MustParse(itoaInt64(m.Split))
			}
		}

		shares := money.SplitWeighted(projectPool, weights)
		for i, share := range shares {
			if share.IsZero() || share.IsNegative() {
				continue
			}
			rows = append(rows, &storage.PayoutValue{
				UserID:        members[i].UserID,
				ProjectID:     project.ID,
				Amount:        share.String(),
				CreatedDate:   windowStart,
				DateAvailable: dateAvailable(now, j.availabilityDays),
			})
		}
	}

	if len(rows) == 0 {
		return nil
	}
	if err := j.store.InsertPayoutValues(ctx, rows); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabase, "insert payout values", err)
	}
	log.Info().Int("rows", len(rows)).Msg("payouts.batch_committed")
	return nil
}

// teamSplits resolves the union of a project's direct team and (if it
// belongs to one) its organization's team, direct membership overriding an
// org membership for the same user (spec.md §4.F step 5).
func (j *BatchJob) teamSplits(ctx context.Context, project *storage.Project) ([]*storage.TeamMember, error) {
	direct, err := j.store.ListAcceptedTeamMembers(ctx, project.TeamID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabase, "list direct team members", err)
	}

	byUser := make(map[int64]*storage.TeamMember, len(direct))
	for _, m := range direct {
		byUser[m.UserID] = m
	}

	if project.OrganizationID != nil {
		org, err := j.store.GetOrganizationByID(ctx, *project.OrganizationID)
		if err == nil {
			orgMembers, err := j.store.ListAcceptedTeamMembers(ctx, org.TeamID)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeDatabase, "list org team members", err)
			}
			for _, m := range orgMembers {
				if _, exists := byUser[m.UserID]; !exists {
					byUser[m.UserID] = m
				}
			}
		} else if err != storage.ErrNotFound {
			return nil, apperrors.Wrap(apperrors.CodeDatabase, "load project organization", err)
		}
	}

	out := make([]*storage.TeamMember, 0, len(byUser))
	for _, m := range byUser {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dateAvailable computes "first day of next month + availabilityDays", the
// Net-60-style holdback spec.md §4.F step 9 specifies.
func dateAvailable(now time.Time, availabilityDays int) time.Time {
	y, m, _ := now.UTC().Date()
	firstOfNextMonth := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNextMonth.AddDate(0, 0, availabilityDays)
}

func itoaInt64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
