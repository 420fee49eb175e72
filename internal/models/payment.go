package models

import "time"

// PaymentStatus is the review state of a student payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Payment is a tuition payment a student reports for a course.
type Payment struct {
	ID         string        `db:"id" json:"id"`
	StudentID  string        `db:"student_id" json:"student_id"`
	CourseID   *string       `db:"course_id" json:"course_id,omitempty"`
	Amount     float64       `db:"amount" json:"amount"`
	Currency   string        `db:"currency" json:"currency"`
	Reference  *string       `db:"reference" json:"reference,omitempty"`
	Status     PaymentStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	ApprovedAt *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy *string       `db:"approved_by" json:"approved_by,omitempty"`
}

// PaymentDetail adds names for the admin panel.
type PaymentDetail struct {
	Payment
	StudentName string  `db:"student_name" json:"student_name"`
	CourseTitle *string `db:"course_title" json:"course_title,omitempty"`
}
