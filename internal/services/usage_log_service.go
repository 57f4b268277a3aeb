package services

import (
	"context"
	"docstack-api/internal/logger"
	"docstack-api/internal/models"
	"docstack-api/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UsageLogService appends one ledger entry per API call. Logging is
// best-effort: a failed append is recorded locally and never surfaced, the
// response already sent to the caller must not be affected.
type UsageLogService interface {
	LogAPICall(ctx context.Context, userID uuid.UUID, endpoint string, success bool, callErr string)
	LogAPICallAsync(userID uuid.UUID, endpoint string, success bool, callErr string)
}

type usageLogService struct {
	repo    repository.APIUsageRepository
	timeout time.Duration
}

func NewUsageLogService(repo repository.APIUsageRepository, timeout time.Duration) UsageLogService {
	return &usageLogService{
		repo:    repo,
		timeout: timeout,
	}
}

func (s *usageLogService) LogAPICall(ctx context.Context, userID uuid.UUID, endpoint string, success bool, callErr string) {
	if userID == uuid.Nil {
		return
	}

	entry := &models.APIUsageLog{
		UserID:    userID,
		Endpoint:  endpoint,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	}
	if callErr != "" {
		entry.Error = &callErr
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		logger.Logger.WithFields(logrus.Fields{
			"user_id":  userID,
			"endpoint": endpoint,
			"error":    err,
		}).Error("Failed to log API call")
	}
}

// LogAPICallAsync detaches the append from the request lifecycle so the
// handler can respond without waiting on the ledger.
func (s *usageLogService) LogAPICallAsync(userID uuid.UUID, endpoint string, success bool, callErr string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.LogAPICall(ctx, userID, endpoint, success, callErr)
	}()
}
