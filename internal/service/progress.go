package service

import (
	"math"
	"time"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
)

const (
	assignmentWeight = 60
	attendanceWeight = 40
)

// CourseProgress weighs assignment completion at 60% and lecture attendance at 40%.
// Either denominator being zero yields 0.
func CourseProgress(done, totalAssignments, present, totalAttendance int) int {
	if totalAssignments <= 0 || totalAttendance <= 0 {
		return 0
	}
	score := assignmentWeight*float64(done)/float64(totalAssignments) +
		attendanceWeight*float64(present)/float64(totalAttendance)
	return int(math.Round(score))
}

// AssignmentState derives the student-facing status of an assignment and
// whether it still accepts a submission.
func AssignmentState(a models.Assignment, sub *models.Submission, now time.Time) (dto.AssignmentStatus, bool) {
	pastDue := now.After(a.DueDate)
	switch {
	case sub != nil && sub.Grade != nil:
		return dto.AssignmentStatusGraded, false
	case sub != nil:
		return dto.AssignmentStatusSubmitted, !pastDue
	case pastDue:
		return dto.AssignmentStatusOverdue, false
	default:
		return dto.AssignmentStatusPending, true
	}
}

// GradeBadgeFor buckets grade/maxPoints as a percentage.
func GradeBadgeFor(grade *float64, maxPoints int) (*float64, dto.GradeBadge) {
	if grade == nil || maxPoints <= 0 {
		return nil, dto.GradeBadgeUngraded
	}
	ratio := *grade * 100 / float64(maxPoints)
	percent := math.Round(ratio*10) / 10
	switch {
	case ratio >= 90:
		return &percent, dto.GradeBadgeExcellent
	case ratio >= 75:
		return &percent, dto.GradeBadgeGood
	case ratio >= 50:
		return &percent, dto.GradeBadgeFair
	default:
		return &percent, dto.GradeBadgeNeedsImprovement
	}
}
