package payouts

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/payouts/railclient"
	"github.com/hearthforge/backend/internal/storage"
)

// BalanceReporter concurrently samples every payout rail's balance and
// upserts a per-(account_type, pending, recorded_day) snapshot, per
// spec.md §4.G.
type BalanceReporter struct {
	store      storage.Store
	paypal     *railclient.PayPalClient
	brex       *railclient.BrexClient
	tremendous *railclient.TremendousClient

	paypalUser, paypalPassword, paypalSignature string
}

// NewBalanceReporter wires a BalanceReporter from its rail clients and the
// PayPal NVP credentials it needs for GetBalance.
func NewBalanceReporter(store storage.Store, paypal *railclient.PayPalClient, brex *railclient.BrexClient, tremendous *railclient.TremendousClient, paypalUser, paypalPassword, paypalSignature string) *BalanceReporter {
	return &BalanceReporter{
		store: store, paypal: paypal, brex: brex, tremendous: tremendous,
		paypalUser: paypalUser, paypalPassword: paypalPassword, paypalSignature: paypalSignature,
	}
}

// Run samples all three rails concurrently and records the snapshots.
func (r *BalanceReporter) Run(ctx context.Context, now time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	day := startOfDay(now)

	g.Go(func() error {
		amount, err := r.paypal.NVPBalance(gctx, r.paypalUser, r.paypalPassword, r.paypalSignature)
		if err != nil {
			return apperrors.Wrap(apperrors.CodePayments, "paypal balance", err)
		}
		return r.store.RecordBalanceSnapshot(gctx, &storage.PayoutsBalance{
			AccountType: storage.AccountPayPal, Pending: false, RecordedDate: day, Amount: amount,
		})
	})

	g.Go(func() error {
		availableCents, pendingCents, err := r.brex.Balances(gctx)
		if err != nil {
			return apperrors.Wrap(apperrors.CodePayments, "brex balance", err)
		}
		if err := r.store.RecordBalanceSnapshot(gctx, &storage.PayoutsBalance{
			AccountType: storage.AccountBrex, Pending: false, RecordedDate: day, Amount: centsToDollars(availableCents),
		}); err != nil {
			return err
		}
		return r.store.RecordBalanceSnapshot(gctx, &storage.PayoutsBalance{
			AccountType: storage.AccountBrex, Pending: true, RecordedDate: day, Amount: centsToDollars(pendingCents),
		})
	})

	g.Go(func() error {
		sources, err := r.tremendous.Balance(gctx)
		if err != nil {
			return apperrors.Wrap(apperrors.CodePayments, "tremendous balance", err)
		}
		var totalCents int64
		for _, s := range sources {
			c, _ := strconv.ParseInt(s.AvailableBalance, 10, 64)
			totalCents += c
		}
		return r.store.RecordBalanceSnapshot(gctx, &storage.PayoutsBalance{
			AccountType: storage.AccountTremendous, Pending: false, RecordedDate: day, Amount: centsToDollars(totalCents),
		})
	})

	return g.Wait()
}

func centsToDollars(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100
	s := itoaInt64(whole) + "." + twoDigits(frac)
	if neg {
		s = "-" + s
	}
	return s
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + itoaInt64(n)
	}
	return itoaInt64(n)
}
