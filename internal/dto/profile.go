package dto

// ProfileQuery filters admin people listings.
type ProfileQuery struct {
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
