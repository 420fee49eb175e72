package dto

// CreatePaymentRequest is a student reporting a payment.
type CreatePaymentRequest struct {
	CourseID  *string `json:"course_id" validate:"omitempty,uuid"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Currency  string  `json:"currency" validate:"omitempty,len=3"`
	Reference *string `json:"reference" validate:"omitempty,max=200"`
}

// PaymentQuery filters the admin payment list.
type PaymentQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=pending approved rejected"`
}
