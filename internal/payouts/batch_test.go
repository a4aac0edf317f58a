package payouts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthforge/backend/internal/circuitbreaker"
	"github.com/hearthforge/backend/internal/config"
	"github.com/hearthforge/backend/internal/money"
	"github.com/hearthforge/backend/internal/payouts/railclient"
	"github.com/hearthforge/backend/internal/storage"
)

type fakeAnalytics struct {
	views, downloads           map[int64]int64
	totalViews, totalDownloads int64
}

func (f fakeAnalytics) ProjectViewCounts(ctx context.Context, from, to time.Time) (map[int64]int64, int64, error) {
	return f.views, f.totalViews, nil
}

func (f fakeAnalytics) ProjectDownloadCounts(ctx context.Context, from, to time.Time) (map[int64]int64, int64, error) {
	return f.downloads, f.totalDownloads, nil
}

func TestDateAvailableIsFirstOfNextMonthPlusOffset(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	got := dateAvailable(now, 59)
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 59)
	require.True(t, got.Equal(want))
}

func TestBatchJobIsIdempotentPerCreatedDate(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertPayoutValues(context.Background(), []*storage.PayoutValue{
		{UserID: 1, ProjectID: 1, Amount: "1.00", CreatedDate: yesterday, DateAvailable: yesterday},
	}))

	fees, err := money.NewFeeModel("0.008", "0.0154", "0.25")
	require.NoError(t, err)

	job := NewBatchJob(store, fakeAnalytics{}, nil, fees, 59)
	// aditude is nil but must never be dialed because idempotence short-circuits first.
	require.NoError(t, job.Run(context.Background(), now))
}

func TestBatchJobSkipsZeroActivityWindow(t *testing.T) {
	store := storage.NewMemoryStore()
	fees, err := money.NewFeeModel("0.008", "0.0154", "0.25")
	require.NoError(t, err)

	job := NewBatchJob(store, fakeAnalytics{}, nil, fees, 59)
	err = job.Run(context.Background(), time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err, "zero total views+downloads must short-circuit before touching aditude")
}

// TestRunProducesSpecScenario5Split reproduces spec.md's scenario 5 literally:
// project P has monetized views=80, downloads=20 yesterday against
// totals views=400, downloads=100; aditude reports gross=$100 over 10,000
// impressions; two accepted members split 3:1. Expected:
// net = 100 - (0.008+0.0154)*10000/1000 = 99.766
// pool = round(99.766*0.75) = 74.82
// project_share = (80+20)/(400+100) = 0.2
// project_pool = round(74.82*0.2) = 14.96
// member A (split 3) = round(14.96*3/4) = 11.22, member B (split 1) = 3.74
func TestRunProducesSpecScenario5Split(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	aditudeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"METRIC_IMPRESSIONS": 10000, "METRIC_REVENUE": "100"},
			},
		})
	}))
	defer aditudeSrv.Close()

	breaker := circuitbreaker.NewManager(circuitbreaker.Config{Enabled: false})
	aditude := railclient.NewAditudeClient(config.AditudeConfig{APIBaseURL: aditudeSrv.URL, APIKey: "key"}, breaker)

	require.NoError(t, store.CreateProject(ctx, &storage.Project{
		Slug: "monetized-mod", Name: "Monetized Mod", TeamID: 50,
		MonetizationStatus: storage.MonetizationMonetized, Status: storage.ProjectApproved,
	}))
	project, err := store.GetProjectBySlug(ctx, "monetized-mod")
	require.NoError(t, err)

	require.NoError(t, store.InviteTeamMember(ctx, &storage.TeamMember{TeamID: 50, UserID: 1, Role: "owner", Accepted: true, Split: 3}))
	require.NoError(t, store.InviteTeamMember(ctx, &storage.TeamMember{TeamID: 50, UserID: 2, Role: "member", Accepted: true, Split: 1}))

	fees, err := money.NewFeeModel("0.008", "0.0154", "0.25")
	require.NoError(t, err)

	analytics := fakeAnalytics{
		views:          map[int64]int64{project.ID: 80},
		totalViews:     400,
		downloads:      map[int64]int64{project.ID: 20},
		totalDownloads: 100,
	}

	job := NewBatchJob(store, analytics, aditude, fees, 59)
	now := time.Date(2026, 7, 30, 2, 0, 0, 0, time.UTC)
	require.NoError(t, job.Run(ctx, now))

	asOf := dateAvailable(now, 59)
	windowStart := startOfDay(now).AddDate(0, 0, -1)

	rowsA, err := store.ListAvailablePayoutValues(ctx, 1, asOf)
	require.NoError(t, err)
	require.Len(t, rowsA, 1)
	require.Equal(t, "11.22", rowsA[0].Amount)
	require.True(t, rowsA[0].CreatedDate.Equal(windowStart))

	rowsB, err := store.ListAvailablePayoutValues(ctx, 2, asOf)
	require.NoError(t, err)
	require.Len(t, rowsB, 1)
	require.Equal(t, "3.74", rowsB[0].Amount)
}

func TestTeamSplitsDirectMembershipOverridesOrgMembership(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.InviteTeamMember(ctx, &storage.TeamMember{TeamID: 10, UserID: 1, Role: "owner", Accepted: true, Split: 2}))
	require.NoError(t, store.InviteTeamMember(ctx, &storage.TeamMember{TeamID: 10, UserID: 2, Role: "member", Accepted: true, Split: 3}))

	require.NoError(t, store.InviteTeamMember(ctx, &storage.TeamMember{TeamID: 20, UserID: 2, Role: "owner", Accepted: true, Split: 99}))
	require.NoError(t, store.InviteTeamMember(ctx, &storage.TeamMember{TeamID: 20, UserID: 3, Role: "member", Accepted: true, Split: 5}))
	require.NoError(t, store.InviteTeamMember(ctx, &storage.TeamMember{TeamID: 20, UserID: 4, Role: "invited", Accepted: false, Split: 7}))

	require.NoError(t, store.CreateOrganization(ctx, &storage.Organization{Slug: "guild", TeamID: 20, OwnerUserID: 2}))
	org, err := store.GetOrganizationByID(ctx, 1)
	require.NoError(t, err)

	job := NewBatchJob(store, nil, nil, money.FeeModel{}, 0)
	members, err := job.teamSplits(ctx, &storage.Project{TeamID: 10, OrganizationID: &org.ID})
	require.NoError(t, err)
	require.Len(t, members, 3, "unaccepted org invite must not appear, direct+org union otherwise")

	byUser := make(map[int64]*storage.TeamMember, len(members))
	for _, m := range members {
		byUser[m.UserID] = m
	}
	require.Equal(t, int64(2), byUser[1].Split)
	require.Equal(t, int64(3), byUser[2].Split, "direct team's split for user 2 must win over the org's split of 99")
	require.Equal(t, int64(5), byUser[3].Split, "user 3 has no direct membership, so the org split applies")
	require.NotContains(t, byUser, int64(4), "unaccepted org invite must be excluded")
}

func TestTeamSplitsWithoutOrganizationReturnsOnlyDirectTeam(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.InviteTeamMember(ctx, &storage.TeamMember{TeamID: 10, UserID: 1, Role: "owner", Accepted: true, Split: 1}))

	job := NewBatchJob(store, nil, nil, money.FeeModel{}, 0)
	members, err := job.teamSplits(ctx, &storage.Project{TeamID: 10})
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, int64(1), members[0].UserID)
}

func TestCatalogSortPlacesUprankFirstDownrankLast(t *testing.T) {
	methods := []PayoutMethod{
		{ID: "zzzz", Name: "Zebra Card"},
		{ID: "EIPF8Q00EMM1", Name: "Downranked"},
		{ID: "ET0ZVETV5ILN", Name: "Upranked"},
		{ID: "aaaa", Name: "Aardvark Card"},
	}
	sortCatalog(methods)
	require.Equal(t, "ET0ZVETV5ILN", methods[0].ID)
	require.Equal(t, "EIPF8Q00EMM1", methods[len(methods)-1].ID)
}

// TestRefreshFiltersSpecScenario6Products reproduces spec.md's scenario 6
// literally: a crypto-category product is dropped outright; an ach-category
// product with one SKU {min:10,max:500} is kept with fee {0.04,0.25,nil}
// and interval Standard{10,500}; a merchant_cards product with two SKUs and
// no USD in currency_codes is dropped for failing the Fixed-interval
// USD invariant (spec.md §4.E step 2, "Fixed interval methods must support
// USD; non-USD fixed-value cards are dropped").
func TestRefreshFiltersSpecScenario6Products(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"products": []map[string]interface{}{
				{
					"id": "CRYPTO1", "name": "Bitcoin Card", "category": "crypto",
					"currency_codes": []string{"USD"},
					"skus":           []map[string]interface{}{{"min": 5, "max": 100}},
				},
				{
					"id": "ACH1", "name": "Direct Deposit", "category": "ach",
					"currency_codes": []string{"USD"},
					"skus":           []map[string]interface{}{{"min": 10, "max": 500}},
				},
				{
					"id": "MERCH1", "name": "Gift Card Pack", "category": "merchant_cards",
					"currency_codes": []string{"EUR", "GBP"},
					"skus":           []map[string]interface{}{{"min": 5, "max": 50}, {"min": 10, "max": 100}},
				},
			},
		})
	}))
	defer srv.Close()

	breaker := circuitbreaker.NewManager(circuitbreaker.Config{Enabled: false})
	tremendous := railclient.NewTremendousClient(config.TremendousRailConfig{APIBaseURL: srv.URL, APIKey: "key"}, breaker, nil)
	catalog := NewCatalog(tremendous, time.Hour)

	methods, err := catalog.refresh(context.Background())
	require.NoError(t, err)

	// 3 synthetic (paypal-us, venmo-us, paypal-intl) + the surviving ach product.
	require.Len(t, methods, 4, "crypto and non-USD merchant_cards products must be dropped")

	var ach *PayoutMethod
	for i := range methods {
		if methods[i].ID == "ACH1" {
			ach = &methods[i]
		}
		require.NotEqual(t, "CRYPTO1", methods[i].ID, "crypto category must never reach the catalog")
		require.NotEqual(t, "MERCH1", methods[i].ID, "non-USD fixed-value merchant card must be dropped")
	}
	require.NotNil(t, ach, "ach product with a single USD sku must survive the filter")
	require.Equal(t, "tremendous", ach.Type)
	require.Equal(t, Fee{Percentage: 0.04, Min: 0.25, Max: nil}, ach.Fee)
	require.NotNil(t, ach.Interval.Standard)
	require.Equal(t, 10.0, ach.Interval.Standard.Min)
	require.Equal(t, 500.0, ach.Interval.Standard.Max)
}

func TestPrependSyntheticMethodsOrder(t *testing.T) {
	methods := prependSyntheticMethods(nil)
	require.Len(t, methods, 3)
	require.Equal(t, "paypal", methods[0].Type)
	require.Equal(t, "US", methods[0].Country)
	require.Equal(t, "venmo", methods[1].Type)
	require.Equal(t, "paypal", methods[2].Type)
	require.Equal(t, "*", methods[2].Country)
}
