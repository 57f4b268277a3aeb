package services

import (
	"context"
	"docstack-api/internal/config"
	"docstack-api/internal/errors"
	"docstack-api/internal/logger"
	"docstack-api/internal/models"
	"docstack-api/internal/repository"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type SubscriptionTier string

const (
	FreeTier       SubscriptionTier = "FREE"
	BasicTier      SubscriptionTier = "BASIC"
	EnterpriseTier SubscriptionTier = "ENTERPRISE"
)

// ReasonLimitReached is attached to a decision only when the call is blocked.
const ReasonLimitReached = "API call limit reached"

// QuotaDecision is the verdict for a single API call plus the counters that
// explain it.
type QuotaDecision struct {
	CanProceed   bool             `json:"can_proceed"`
	HasOverride  bool             `json:"has_override"`
	CurrentUsage int64            `json:"current_usage"`
	Limit        int64            `json:"limit"`
	Tier         SubscriptionTier `json:"tier"`
	WindowStart  time.Time        `json:"window_start"`
	Reason       string           `json:"reason,omitempty"`
}

// KeyIdentity is the resolved owner of an API key.
type KeyIdentity struct {
	KeyID  uuid.UUID
	UserID uuid.UUID
	TeamID *uuid.UUID
}

// QuotaService decides whether a caller may make another API call in the
// current usage window.
//
// EvaluateKey is the strict variant used by the HTTP middleware: an unknown
// or missing key fails with ErrInvalidIdentity. EvaluateUser is the lenient
// variant used by the dashboard: it never fails, a missing identity degrades
// to free-tier defaults.
type QuotaService interface {
	EvaluateKey(ctx context.Context, apiKey string) (*QuotaDecision, *KeyIdentity, error)
	EvaluateUser(ctx context.Context, userID uuid.UUID) *QuotaDecision
}

type quotaContextKey string

const apiIdentityContextKey quotaContextKey = "api_identity"

// WithAPIIdentityContext stores the resolved key identity for downstream
// handlers.
func WithAPIIdentityContext(ctx context.Context, identity *KeyIdentity) context.Context {
	return context.WithValue(ctx, apiIdentityContextKey, identity)
}

// APIIdentityFromContext returns the identity resolved by the usage-limit
// middleware.
func APIIdentityFromContext(ctx context.Context) (*KeyIdentity, bool) {
	identity, ok := ctx.Value(apiIdentityContextKey).(*KeyIdentity)
	return identity, ok
}

type overrideLookup func(ctx context.Context) (*models.TeamMembership, error)

type quotaService struct {
	apiKeys     repository.APIKeyRepository
	profiles    repository.ProfileRepository
	memberships repository.TeamMembershipRepository
	usage       repository.APIUsageRepository
	cache       CacheService
	cacheTTL    time.Duration
	cfg         config.QuotaConfig
	now         func() time.Time
}

// NewQuotaService builds the resolver. cache may be nil, in which case every
// evaluation goes straight to the stores.
func NewQuotaService(
	apiKeys repository.APIKeyRepository,
	profiles repository.ProfileRepository,
	memberships repository.TeamMembershipRepository,
	usage repository.APIUsageRepository,
	cache CacheService,
	cacheTTL time.Duration,
	cfg config.QuotaConfig,
) QuotaService {
	return &quotaService{
		apiKeys:     apiKeys,
		profiles:    profiles,
		memberships: memberships,
		usage:       usage,
		cache:       cache,
		cacheTTL:    cacheTTL,
		cfg:         cfg,
		now:         time.Now,
	}
}

// UsageWindowStart returns the instant from which calls are counted: the
// profile's last usage reset when set, otherwise the first instant of the
// current calendar month in UTC.
func UsageWindowStart(lastUsageResetAt *time.Time, now time.Time) time.Time {
	if lastUsageResetAt != nil {
		return lastUsageResetAt.UTC()
	}
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (s *quotaService) EvaluateKey(ctx context.Context, apiKey string) (*QuotaDecision, *KeyIdentity, error) {
	if apiKey == "" {
		return nil, nil, errors.ErrInvalidIdentity
	}

	kctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	key, err := s.apiKeys.GetByKey(kctx, apiKey)
	if err != nil {
		return nil, nil, errors.ErrInvalidIdentity
	}
	if key.UserID == uuid.Nil {
		return nil, nil, errors.ErrInvalidIdentity
	}

	identity := &KeyIdentity{KeyID: key.ID, UserID: key.UserID, TeamID: key.TeamID}

	var lookup overrideLookup
	if key.TeamID != nil {
		teamID := *key.TeamID
		userID := key.UserID
		lookup = func(ctx context.Context) (*models.TeamMembership, error) {
			return s.fetchMembership(ctx, "quota:override:"+teamID.String()+":"+userID.String(), func(fctx context.Context) (*models.TeamMembership, error) {
				return s.memberships.GetMembership(fctx, teamID, userID)
			})
		}
	}

	return s.evaluate(ctx, key.UserID, lookup), identity, nil
}

func (s *quotaService) EvaluateUser(ctx context.Context, userID uuid.UUID) *QuotaDecision {
	if userID == uuid.Nil {
		return &QuotaDecision{
			CanProceed: true,
			Limit:      s.cfg.FreeLimit,
			Tier:       FreeTier,
		}
	}

	lookup := func(ctx context.Context) (*models.TeamMembership, error) {
		return s.fetchMembership(ctx, "quota:override:profile:"+userID.String(), func(fctx context.Context) (*models.TeamMembership, error) {
			return s.memberships.GetByProfileID(fctx, userID)
		})
	}

	return s.evaluate(ctx, userID, lookup)
}

// evaluate runs steps 2-8 of the decision pipeline. The profile and override
// fetches run concurrently; every upstream failure falls back per the
// configured resolution-error policy.
func (s *quotaService) evaluate(ctx context.Context, userID uuid.UUID, lookup overrideLookup) *QuotaDecision {
	var (
		profile     *models.Profile
		profileErr  error
		membership  *models.TeamMembership
		overrideErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, profileErr = s.fetchProfile(gctx, userID)
		return nil
	})
	if lookup != nil {
		g.Go(func() error {
			membership, overrideErr = lookup(gctx)
			return nil
		})
	}
	_ = g.Wait()

	if profileErr != nil && profileErr != errors.ErrNotFound {
		logger.Logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   profileErr,
		}).Warn("Subscription profile fetch failed")

		if s.cfg.OnResolutionError == config.ResolutionErrorDeny {
			return &QuotaDecision{
				CanProceed: false,
				Tier:       FreeTier,
				Reason:     "subscription profile unavailable",
			}
		}
		profile = nil // fall through with free-tier defaults
	}

	tier, limit := s.tierLimit(profile)

	hasOverride := false
	if overrideErr != nil && overrideErr != errors.ErrNotFound {
		// An override lookup error is swallowed: standard limits apply.
		logger.Logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   overrideErr,
		}).Warn("Team membership fetch failed, continuing without override")
	} else if membership != nil && membership.APICallsOverride != nil && *membership.APICallsOverride != 0 {
		hasOverride = true
		limit = *membership.APICallsOverride
	}

	var lastReset *time.Time
	if profile != nil {
		lastReset = profile.LastUsageResetAt
	}
	windowStart := UsageWindowStart(lastReset, s.now())

	uctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	usage, err := s.usage.CountSince(uctx, userID, windowStart)
	if err != nil {
		logger.Logger.WithFields(logrus.Fields{
			"user_id":      userID,
			"window_start": windowStart,
			"error":        err,
		}).Warn("Usage count failed")

		if s.cfg.OnResolutionError == config.ResolutionErrorDeny {
			return &QuotaDecision{
				CanProceed:  false,
				HasOverride: hasOverride,
				Limit:       limit,
				Tier:        tier,
				WindowStart: windowStart,
				Reason:      "usage ledger unavailable",
			}
		}
		usage = 0
	}

	hasReachedLimit := usage >= limit
	canProceed := !hasReachedLimit || (hasOverride && s.cfg.OverrideBypassesLimit)

	decision := &QuotaDecision{
		CanProceed:   canProceed,
		HasOverride:  hasOverride,
		CurrentUsage: usage,
		Limit:        limit,
		Tier:         tier,
		WindowStart:  windowStart,
	}
	if !canProceed {
		decision.Reason = ReasonLimitReached
	}

	return decision
}

// tierLimit maps a subscription profile to its tier and call limit. The
// mapping is total: anything unrecognized lands on the free tier.
func (s *quotaService) tierLimit(profile *models.Profile) (SubscriptionTier, int64) {
	if profile == nil || !profile.IsSubscribed || profile.SubscribedProductID == nil {
		return FreeTier, s.cfg.FreeLimit
	}

	switch productID := *profile.SubscribedProductID; {
	case productID != "" && productID == s.cfg.BasicProductID:
		return BasicTier, s.cfg.BasicLimit
	case productID != "" && productID == s.cfg.EnterpriseProductID:
		return EnterpriseTier, s.cfg.EnterpriseLimit
	default:
		return FreeTier, s.cfg.FreeLimit
	}
}

func (s *quotaService) fetchProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	cacheKey := "quota:profile:" + userID.String()
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached models.Profile
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	profile, err := s.profiles.GetByUserID(fctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, profile, s.cacheTTL); err != nil {
			logger.Logger.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err,
			}).Debug("Failed to cache subscription profile")
		}
	}

	return profile, nil
}

func (s *quotaService) fetchMembership(ctx context.Context, cacheKey string, fetch func(ctx context.Context) (*models.TeamMembership, error)) (*models.TeamMembership, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached models.TeamMembership
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	membership, err := fetch(fctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, membership, s.cacheTTL); err != nil {
			logger.Logger.WithFields(logrus.Fields{
				"cache_key": cacheKey,
				"error":     err,
			}).Debug("Failed to cache team membership")
		}
	}

	return membership, nil
}
