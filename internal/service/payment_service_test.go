package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type memoryPaymentRepo struct {
	payments    map[string]*models.Payment
	listStudent string
}

func (m *memoryPaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	p.ID = "pay-new"
	p.Status = models.PaymentStatusPending
	m.payments[p.ID] = p
	return nil
}

func (m *memoryPaymentRepo) List(ctx context.Context, status models.PaymentStatus, studentID string) ([]models.PaymentDetail, error) {
	m.listStudent = studentID
	return []models.PaymentDetail{}, nil
}

func (m *memoryPaymentRepo) Review(ctx context.Context, id string, status models.PaymentStatus, reviewerID string) (*models.Payment, error) {
	p, ok := m.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return nil, appErrors.NewDataError(appErrors.KindNotFound, "review payment", errNoRows())
	}
	p.Status = status
	p.ApprovedBy = &reviewerID
	return p, nil
}

func (m *memoryPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return nil, errNoRows()
}

func TestPaymentCreateDefaultsCurrency(t *testing.T) {
	repo := &memoryPaymentRepo{payments: map[string]*models.Payment{}}
	cache := &recordingInvalidator{}
	svc := NewPaymentService(repo, cache, nil, nil, nil, "EUR")

	p, err := svc.Create(context.Background(), testStudentID, dto.CreatePaymentRequest{Amount: 99.5})
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, []string{AdminTag}, cache.tags)

	p, err = svc.Create(context.Background(), testStudentID, dto.CreatePaymentRequest{Amount: 10, Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, "USD", p.Currency)

	_, err = svc.Create(context.Background(), testStudentID, dto.CreatePaymentRequest{Amount: 0})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestPaymentReview(t *testing.T) {
	repo := &memoryPaymentRepo{payments: map[string]*models.Payment{
		"pay-1": {ID: "pay-1", StudentID: testStudentID, Status: models.PaymentStatusPending},
	}}
	cache := &recordingInvalidator{}
	svc := NewPaymentService(repo, cache, nil, nil, nil, "")

	p, err := svc.Approve(context.Background(), "admin-1", "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, p.Status)
	assert.ElementsMatch(t, []string{AdminTag, StudentTag(testStudentID)}, cache.tags)

	_, err = svc.Reject(context.Background(), "admin-1", "pay-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)

	_, err = svc.Approve(context.Background(), "admin-1", "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestPaymentListScopesStudents(t *testing.T) {
	repo := &memoryPaymentRepo{payments: map[string]*models.Payment{}}
	svc := NewPaymentService(repo, nil, nil, nil, nil, "")

	_, err := svc.List(context.Background(), Actor{ID: testStudentID, Role: models.RoleStudent}, dto.PaymentQuery{})
	require.NoError(t, err)
	assert.Equal(t, testStudentID, repo.listStudent)

	_, err = svc.List(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, dto.PaymentQuery{Status: "pending"})
	require.NoError(t, err)
	assert.Empty(t, repo.listStudent)
}
