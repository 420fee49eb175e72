package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const paymentColumns = `id, student_id, course_id, amount, currency, reference, status, created_at, approved_at, approved_by`

// PaymentRepository manages student payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create stores a pending payment.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = models.PaymentStatusPending
	p.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO payments (id, student_id, course_id, amount, currency, reference, status, created_at)
VALUES (:id, :student_id, :course_id, :amount, :currency, :reference, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return classify("create payment", err)
	}
	return nil
}

// List returns payments with student and course names.
func (r *PaymentRepository) List(ctx context.Context, status models.PaymentStatus, studentID string) ([]models.PaymentDetail, error) {
	query := `SELECT pm.id, pm.student_id, pm.course_id, pm.amount, pm.currency, pm.reference, pm.status, pm.created_at, pm.approved_at, pm.approved_by,
	p.full_name AS student_name, c.title AS course_title
FROM payments pm
JOIN profiles p ON p.id = pm.student_id
LEFT JOIN courses c ON c.id = pm.course_id
WHERE ($1 = '' OR pm.status = $1) AND ($2 = '' OR pm.student_id::text = $2)
ORDER BY pm.created_at DESC`
	out := []models.PaymentDetail{}
	if err := r.db.SelectContext(ctx, &out, query, string(status), studentID); err != nil {
		return nil, classify("list payments", err)
	}
	return out, nil
}

// Review moves a pending payment to approved or rejected.
func (r *PaymentRepository) Review(ctx context.Context, id string, status models.PaymentStatus, reviewerID string) (*models.Payment, error) {
	const query = `UPDATE payments SET status = $2, approved_at = $3, approved_by = $4 WHERE id = $1 AND status = 'pending' RETURNING ` + paymentColumns
	var p models.Payment
	if err := r.db.GetContext(ctx, &p, query, id, status, time.Now().UTC(), reviewerID); err != nil {
		return nil, classify("review payment", err)
	}
	return &p, nil
}

// FindByID returns a payment.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id); err != nil {
		return nil, classify("find payment", err)
	}
	return &p, nil
}
