package services

import (
	"context"
	"docstack-api/internal/config"
	"docstack-api/internal/errors"
	"docstack-api/internal/models"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPIKeyRepo struct {
	getByKey func(ctx context.Context, key string) (*models.APIKey, error)
}

func (f *fakeAPIKeyRepo) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	return f.getByKey(ctx, key)
}

type fakeProfileRepo struct {
	getByUserID func(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

func (f *fakeProfileRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return f.getByUserID(ctx, userID)
}

type fakeMembershipRepo struct {
	getMembership  func(ctx context.Context, teamID, profileID uuid.UUID) (*models.TeamMembership, error)
	getByProfileID func(ctx context.Context, profileID uuid.UUID) (*models.TeamMembership, error)
}

func (f *fakeMembershipRepo) GetMembership(ctx context.Context, teamID, profileID uuid.UUID) (*models.TeamMembership, error) {
	return f.getMembership(ctx, teamID, profileID)
}

func (f *fakeMembershipRepo) GetByProfileID(ctx context.Context, profileID uuid.UUID) (*models.TeamMembership, error) {
	return f.getByProfileID(ctx, profileID)
}

type fakeUsageRepo struct {
	countSince func(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	appendFn   func(ctx context.Context, entry *models.APIUsageLog) error
}

func (f *fakeUsageRepo) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	return f.countSince(ctx, userID, since)
}

func (f *fakeUsageRepo) Append(ctx context.Context, entry *models.APIUsageLog) error {
	return f.appendFn(ctx, entry)
}

func testQuotaConfig() config.QuotaConfig {
	return config.QuotaConfig{
		FreeLimit:             50,
		BasicLimit:            4750,
		EnterpriseLimit:       25000,
		BasicProductID:        "prod_basic",
		EnterpriseProductID:   "prod_enterprise",
		OnResolutionError:     config.ResolutionErrorAllow,
		OverrideBypassesLimit: true,
		StoreTimeout:          time.Second,
	}
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func noMembership() *fakeMembershipRepo {
	return &fakeMembershipRepo{
		getMembership: func(context.Context, uuid.UUID, uuid.UUID) (*models.TeamMembership, error) {
			return nil, errors.ErrNotFound
		},
		getByProfileID: func(context.Context, uuid.UUID) (*models.TeamMembership, error) {
			return nil, errors.ErrNotFound
		},
	}
}

func profileRepoFor(profile *models.Profile) *fakeProfileRepo {
	return &fakeProfileRepo{
		getByUserID: func(context.Context, uuid.UUID) (*models.Profile, error) {
			if profile == nil {
				return nil, errors.ErrNotFound
			}
			return profile, nil
		},
	}
}

func usageRepoCounting(count int64) *fakeUsageRepo {
	return &fakeUsageRepo{
		countSince: func(context.Context, uuid.UUID, time.Time) (int64, error) {
			return count, nil
		},
		appendFn: func(context.Context, *models.APIUsageLog) error { return nil },
	}
}

func newTestQuotaService(
	keys *fakeAPIKeyRepo,
	profiles *fakeProfileRepo,
	memberships *fakeMembershipRepo,
	usage *fakeUsageRepo,
	cfg config.QuotaConfig,
) *quotaService {
	if keys == nil {
		keys = &fakeAPIKeyRepo{
			getByKey: func(context.Context, string) (*models.APIKey, error) {
				return nil, errors.ErrNotFound
			},
		}
	}
	svc := NewQuotaService(keys, profiles, memberships, usage, nil, 0, cfg).(*quotaService)
	return svc
}

func TestTierMapping(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name      string
		profile   *models.Profile
		wantTier  SubscriptionTier
		wantLimit int64
	}{
		{
			name:      "no profile defaults to free",
			profile:   nil,
			wantTier:  FreeTier,
			wantLimit: 50,
		},
		{
			name:      "unsubscribed user is free",
			profile:   &models.Profile{ID: userID, IsSubscribed: false, SubscribedProductID: strPtr("prod_basic")},
			wantTier:  FreeTier,
			wantLimit: 50,
		},
		{
			name:      "basic product maps to basic limit",
			profile:   &models.Profile{ID: userID, IsSubscribed: true, SubscribedProductID: strPtr("prod_basic")},
			wantTier:  BasicTier,
			wantLimit: 4750,
		},
		{
			name:      "enterprise product maps to enterprise limit",
			profile:   &models.Profile{ID: userID, IsSubscribed: true, SubscribedProductID: strPtr("prod_enterprise")},
			wantTier:  EnterpriseTier,
			wantLimit: 25000,
		},
		{
			name:      "unrecognized product falls back to free",
			profile:   &models.Profile{ID: userID, IsSubscribed: true, SubscribedProductID: strPtr("prod_retired")},
			wantTier:  FreeTier,
			wantLimit: 50,
		},
		{
			name:      "subscribed without product id is free",
			profile:   &models.Profile{ID: userID, IsSubscribed: true},
			wantTier:  FreeTier,
			wantLimit: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestQuotaService(nil, profileRepoFor(tt.profile), noMembership(), usageRepoCounting(0), testQuotaConfig())

			decision := svc.EvaluateUser(context.Background(), userID)

			assert.True(t, decision.CanProceed)
			assert.Equal(t, tt.wantTier, decision.Tier)
			assert.Equal(t, tt.wantLimit, decision.Limit)
		})
	}
}

func TestEvaluateUserDefaultsToCalendarMonthWindow(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
	wantWindowStart := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	var gotSince time.Time
	usage := &fakeUsageRepo{
		countSince: func(_ context.Context, _ uuid.UUID, since time.Time) (int64, error) {
			gotSince = since
			return 10, nil
		},
		appendFn: func(context.Context, *models.APIUsageLog) error { return nil },
	}

	svc := newTestQuotaService(nil, profileRepoFor(&models.Profile{ID: userID}), noMembership(), usage, testQuotaConfig())
	svc.now = func() time.Time { return now }

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.Equal(t, wantWindowStart, gotSince)
	assert.True(t, decision.CanProceed)
	assert.Equal(t, int64(10), decision.CurrentUsage)
	assert.Equal(t, int64(50), decision.Limit)
	assert.Empty(t, decision.Reason)
}

func TestEvaluateUserBlocksAtLimit(t *testing.T) {
	userID := uuid.New()
	reset := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
	profile := &models.Profile{
		ID:                  userID,
		IsSubscribed:        true,
		SubscribedProductID: strPtr("prod_basic"),
		LastUsageResetAt:    &reset,
	}

	svc := newTestQuotaService(nil, profileRepoFor(profile), noMembership(), usageRepoCounting(4750), testQuotaConfig())

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.False(t, decision.CanProceed)
	assert.False(t, decision.HasOverride)
	assert.Equal(t, int64(4750), decision.CurrentUsage)
	assert.Equal(t, int64(4750), decision.Limit)
	assert.Equal(t, ReasonLimitReached, decision.Reason)
}

func TestOverrideReplacesLimit(t *testing.T) {
	userID := uuid.New()
	profile := &models.Profile{ID: userID, IsSubscribed: true, SubscribedProductID: strPtr("prod_basic")}
	memberships := &fakeMembershipRepo{
		getByProfileID: func(context.Context, uuid.UUID) (*models.TeamMembership, error) {
			return &models.TeamMembership{ProfileID: userID, APICallsOverride: int64Ptr(10000)}, nil
		},
	}

	svc := newTestQuotaService(nil, profileRepoFor(profile), memberships, usageRepoCounting(4750), testQuotaConfig())

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.True(t, decision.CanProceed)
	assert.True(t, decision.HasOverride)
	assert.Equal(t, int64(4750), decision.CurrentUsage)
	assert.Equal(t, int64(10000), decision.Limit)
}

// An override is a bypass flag, not just a higher ceiling: even an override
// lower than current usage still lets the call through.
func TestOverrideBypassesLimitRegardlessOfMagnitude(t *testing.T) {
	userID := uuid.New()
	profile := &models.Profile{ID: userID, IsSubscribed: true, SubscribedProductID: strPtr("prod_basic")}
	memberships := &fakeMembershipRepo{
		getByProfileID: func(context.Context, uuid.UUID) (*models.TeamMembership, error) {
			return &models.TeamMembership{ProfileID: userID, APICallsOverride: int64Ptr(100)}, nil
		},
	}

	svc := newTestQuotaService(nil, profileRepoFor(profile), memberships, usageRepoCounting(4750), testQuotaConfig())

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.True(t, decision.CanProceed)
	assert.True(t, decision.HasOverride)
	assert.Equal(t, int64(100), decision.Limit)
	assert.Equal(t, int64(4750), decision.CurrentUsage)
}

func TestOverrideBypassDisabledByConfig(t *testing.T) {
	userID := uuid.New()
	profile := &models.Profile{ID: userID, IsSubscribed: true, SubscribedProductID: strPtr("prod_basic")}
	memberships := &fakeMembershipRepo{
		getByProfileID: func(context.Context, uuid.UUID) (*models.TeamMembership, error) {
			return &models.TeamMembership{ProfileID: userID, APICallsOverride: int64Ptr(100)}, nil
		},
	}

	cfg := testQuotaConfig()
	cfg.OverrideBypassesLimit = false

	svc := newTestQuotaService(nil, profileRepoFor(profile), memberships, usageRepoCounting(4750), cfg)

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.False(t, decision.CanProceed)
	assert.True(t, decision.HasOverride)
	assert.Equal(t, int64(100), decision.Limit)
	assert.Equal(t, ReasonLimitReached, decision.Reason)
}

func TestZeroOverrideIsIgnored(t *testing.T) {
	userID := uuid.New()
	memberships := &fakeMembershipRepo{
		getByProfileID: func(context.Context, uuid.UUID) (*models.TeamMembership, error) {
			return &models.TeamMembership{ProfileID: userID, APICallsOverride: int64Ptr(0)}, nil
		},
	}

	svc := newTestQuotaService(nil, profileRepoFor(&models.Profile{ID: userID}), memberships, usageRepoCounting(0), testQuotaConfig())

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.False(t, decision.HasOverride)
	assert.Equal(t, int64(50), decision.Limit)
}

func TestProfileFetchErrorFailsOpen(t *testing.T) {
	userID := uuid.New()
	profiles := &fakeProfileRepo{
		getByUserID: func(context.Context, uuid.UUID) (*models.Profile, error) {
			return nil, errors.ErrDatabaseError
		},
	}

	svc := newTestQuotaService(nil, profiles, noMembership(), usageRepoCounting(3), testQuotaConfig())

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.True(t, decision.CanProceed)
	assert.Equal(t, FreeTier, decision.Tier)
	assert.Equal(t, int64(50), decision.Limit)
	assert.Equal(t, int64(3), decision.CurrentUsage)
}

func TestProfileFetchErrorDeniesUnderDenyPolicy(t *testing.T) {
	userID := uuid.New()
	profiles := &fakeProfileRepo{
		getByUserID: func(context.Context, uuid.UUID) (*models.Profile, error) {
			return nil, errors.ErrDatabaseError
		},
	}

	cfg := testQuotaConfig()
	cfg.OnResolutionError = config.ResolutionErrorDeny

	svc := newTestQuotaService(nil, profiles, noMembership(), usageRepoCounting(0), cfg)

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.False(t, decision.CanProceed)
	assert.Equal(t, int64(0), decision.Limit)
	assert.NotEmpty(t, decision.Reason)
}

func TestOverrideFetchErrorIsSwallowed(t *testing.T) {
	userID := uuid.New()
	memberships := &fakeMembershipRepo{
		getByProfileID: func(context.Context, uuid.UUID) (*models.TeamMembership, error) {
			return nil, errors.ErrDatabaseError
		},
	}

	svc := newTestQuotaService(nil, profileRepoFor(&models.Profile{ID: userID}), memberships, usageRepoCounting(5), testQuotaConfig())

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.True(t, decision.CanProceed)
	assert.False(t, decision.HasOverride)
	assert.Equal(t, int64(50), decision.Limit)
}

func TestUsageCountErrorFailsOpen(t *testing.T) {
	userID := uuid.New()
	usage := &fakeUsageRepo{
		countSince: func(context.Context, uuid.UUID, time.Time) (int64, error) {
			return 0, errors.ErrDatabaseError
		},
		appendFn: func(context.Context, *models.APIUsageLog) error { return nil },
	}

	svc := newTestQuotaService(nil, profileRepoFor(&models.Profile{ID: userID}), noMembership(), usage, testQuotaConfig())

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.True(t, decision.CanProceed)
	assert.Equal(t, int64(0), decision.CurrentUsage)
}

func TestWindowBoundaryIsInclusive(t *testing.T) {
	userID := uuid.New()
	reset := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	profile := &models.Profile{ID: userID, LastUsageResetAt: &reset}

	entries := []time.Time{
		reset,                        // exactly at the window start, counted
		reset.Add(-time.Microsecond), // just before, excluded
		reset.Add(42 * time.Minute),  // inside, counted
		reset.Add(-24 * time.Hour),   // previous window, excluded
	}

	usage := &fakeUsageRepo{
		countSince: func(_ context.Context, _ uuid.UUID, since time.Time) (int64, error) {
			var count int64
			for _, created := range entries {
				if !created.Before(since) {
					count++
				}
			}
			return count, nil
		},
		appendFn: func(context.Context, *models.APIUsageLog) error { return nil },
	}

	svc := newTestQuotaService(nil, profileRepoFor(profile), noMembership(), usage, testQuotaConfig())

	decision := svc.EvaluateUser(context.Background(), userID)

	assert.Equal(t, int64(2), decision.CurrentUsage)
	assert.Equal(t, reset, decision.WindowStart)
}

func TestEvaluateIsIdempotentWithoutWrites(t *testing.T) {
	userID := uuid.New()
	svc := newTestQuotaService(nil, profileRepoFor(&models.Profile{ID: userID}), noMembership(), usageRepoCounting(7), testQuotaConfig())

	first := svc.EvaluateUser(context.Background(), userID)
	second := svc.EvaluateUser(context.Background(), userID)

	assert.Equal(t, first.CurrentUsage, second.CurrentUsage)
	assert.Equal(t, first.CanProceed, second.CanProceed)
	assert.Equal(t, first.Limit, second.Limit)
}

func TestEvaluateUserWithoutIdentityAllowsFreeDefaults(t *testing.T) {
	svc := newTestQuotaService(nil, profileRepoFor(nil), noMembership(), usageRepoCounting(0), testQuotaConfig())

	decision := svc.EvaluateUser(context.Background(), uuid.Nil)

	assert.True(t, decision.CanProceed)
	assert.Equal(t, FreeTier, decision.Tier)
	assert.Equal(t, int64(50), decision.Limit)
	assert.Equal(t, int64(0), decision.CurrentUsage)
}

func TestEvaluateKeyRejectsMissingAndUnknownKeys(t *testing.T) {
	svc := newTestQuotaService(nil, profileRepoFor(nil), noMembership(), usageRepoCounting(0), testQuotaConfig())

	_, _, err := svc.EvaluateKey(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrInvalidIdentity)

	_, _, err = svc.EvaluateKey(context.Background(), "sk_unknown")
	assert.ErrorIs(t, err, errors.ErrInvalidIdentity)
}

func TestEvaluateKeyResolvesTeamOverride(t *testing.T) {
	userID := uuid.New()
	teamID := uuid.New()

	keys := &fakeAPIKeyRepo{
		getByKey: func(_ context.Context, key string) (*models.APIKey, error) {
			require.Equal(t, "sk_live_team", key)
			return &models.APIKey{ID: uuid.New(), Key: key, UserID: userID, TeamID: &teamID}, nil
		},
	}

	var gotTeamID, gotProfileID uuid.UUID
	memberships := &fakeMembershipRepo{
		getMembership: func(_ context.Context, team, profile uuid.UUID) (*models.TeamMembership, error) {
			gotTeamID, gotProfileID = team, profile
			return &models.TeamMembership{TeamID: team, ProfileID: profile, APICallsOverride: int64Ptr(200)}, nil
		},
	}

	svc := newTestQuotaService(keys, profileRepoFor(&models.Profile{ID: userID}), memberships, usageRepoCounting(60), testQuotaConfig())

	decision, identity, err := svc.EvaluateKey(context.Background(), "sk_live_team")

	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, userID, identity.UserID)
	require.NotNil(t, identity.TeamID)
	assert.Equal(t, teamID, *identity.TeamID)
	assert.Equal(t, teamID, gotTeamID)
	assert.Equal(t, userID, gotProfileID)
	assert.True(t, decision.CanProceed)
	assert.True(t, decision.HasOverride)
	assert.Equal(t, int64(200), decision.Limit)
}

func TestEvaluateKeyWithoutTeamSkipsOverrideLookup(t *testing.T) {
	userID := uuid.New()

	keys := &fakeAPIKeyRepo{
		getByKey: func(_ context.Context, key string) (*models.APIKey, error) {
			return &models.APIKey{ID: uuid.New(), Key: key, UserID: userID}, nil
		},
	}

	membershipCalled := false
	memberships := &fakeMembershipRepo{
		getMembership: func(context.Context, uuid.UUID, uuid.UUID) (*models.TeamMembership, error) {
			membershipCalled = true
			return nil, errors.ErrNotFound
		},
		getByProfileID: func(context.Context, uuid.UUID) (*models.TeamMembership, error) {
			membershipCalled = true
			return nil, errors.ErrNotFound
		},
	}

	svc := newTestQuotaService(keys, profileRepoFor(&models.Profile{ID: userID}), memberships, usageRepoCounting(0), testQuotaConfig())

	decision, identity, err := svc.EvaluateKey(context.Background(), "sk_live_solo")

	require.NoError(t, err)
	assert.Nil(t, identity.TeamID)
	assert.False(t, membershipCalled)
	assert.False(t, decision.HasOverride)
}

func TestUsageWindowStart(t *testing.T) {
	now := time.Date(2025, time.August, 31, 23, 59, 59, 0, time.UTC)

	t.Run("defaults to first of current month", func(t *testing.T) {
		got := UsageWindowStart(nil, now)
		assert.Equal(t, time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("uses last reset when set", func(t *testing.T) {
		reset := time.Date(2025, time.August, 15, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
		got := UsageWindowStart(&reset, now)
		assert.Equal(t, reset.UTC(), got)
		assert.Equal(t, time.UTC, got.Location())
	})
}
