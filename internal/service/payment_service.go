package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type paymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	List(ctx context.Context, status models.PaymentStatus, studentID string) ([]models.PaymentDetail, error)
	Review(ctx context.Context, id string, status models.PaymentStatus, reviewerID string) (*models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
}

// PaymentService records student payments and their admin review.
type PaymentService struct {
	repo      paymentRepository
	cache     cacheInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	currency  string
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(repo paymentRepository, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, defaultCurrency string) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &PaymentService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, currency: defaultCurrency}
}

// Create records a pending payment reported by a student.
func (s *PaymentService) Create(ctx context.Context, studentID string, req dto.CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	p := &models.Payment{StudentID: studentID, CourseID: req.CourseID, Amount: req.Amount, Currency: currency, Reference: req.Reference}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, writeError(err, "failed to record payment")
	}
	invalidate(ctx, s.cache, s.logger, AdminTag)
	return p, nil
}

// List returns payments. Students only see their own.
func (s *PaymentService) List(ctx context.Context, actor Actor, query dto.PaymentQuery) ([]models.PaymentDetail, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status filter")
	}
	studentID := ""
	if !actor.IsAdmin() {
		studentID = actor.ID
	}
	items, err := s.repo.List(ctx, models.PaymentStatus(query.Status), studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return items, nil
}

// Approve confirms a pending payment.
func (s *PaymentService) Approve(ctx context.Context, adminID, id string) (*models.Payment, error) {
	return s.review(ctx, adminID, id, models.PaymentStatusApproved)
}

// Reject declines a pending payment.
func (s *PaymentService) Reject(ctx context.Context, adminID, id string) (*models.Payment, error) {
	return s.review(ctx, adminID, id, models.PaymentStatusRejected)
}

func (s *PaymentService) review(ctx context.Context, adminID, id string, status models.PaymentStatus) (*models.Payment, error) {
	p, err := s.repo.Review(ctx, id, status, adminID)
	if err != nil {
		if !appErrors.IsKind(err, appErrors.KindNotFound) {
			return nil, writeError(err, "failed to review payment")
		}
		// no pending row matched; tell a missing payment from a reviewed one
		if _, findErr := s.repo.FindByID(ctx, id); findErr != nil {
			return nil, lookupError(findErr, "payment not found", "failed to load payment")
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment has already been reviewed")
	}
	s.metrics.RecordReview("payment", string(status))
	invalidate(ctx, s.cache, s.logger, AdminTag, StudentTag(p.StudentID))
	return p, nil
}
