package dto

// ApproveTimesheetRequest approves a completed lecture with an optional bonus.
type ApproveTimesheetRequest struct {
	BonusAmount float64 `json:"bonus_amount" validate:"gte=0"`
}

// RejectRequest carries the reason for a rejection.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// TimesheetQuery filters timesheet listings and exports.
type TimesheetQuery struct {
	TeacherID string `form:"teacher_id" validate:"omitempty,uuid"`
	Status    string `form:"status" validate:"omitempty,oneof=scheduled completed approved rejected"`
	Format    string `form:"format"`
}
