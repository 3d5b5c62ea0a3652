// Package orm holds small GORM query helpers shared by repositories.
package orm

import (
	"strconv"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination is the metadata returned alongside a page of rows.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Page is a normalised page request.
type Page struct {
	Number int
	Limit  int
}

// ParsePage reads ?page= and ?limit= values, clamping them to sane bounds.
func ParsePage(page, limit string) Page {
	p := Page{Number: 1, Limit: DefaultLimit}
	if n, err := strconv.Atoi(page); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(limit); err == nil && n > 0 {
		p.Limit = min(n, MaxLimit)
	}
	return p
}

func (p Page) Offset() int { return (p.Number - 1) * p.Limit }

// Paginate counts q, then loads one page of it into dest.
// q must already carry Model/Where/Order.
func Paginate(q *gorm.DB, p Page, dest any) (Pagination, error) {
	if p.Number < 1 || p.Limit < 1 {
		p = ParsePage("", "")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Pagination{}, err
	}
	if err := q.Session(&gorm.Session{}).Offset(p.Offset()).Limit(p.Limit).Find(dest).Error; err != nil {
		return Pagination{}, err
	}

	pages := int(total) / p.Limit
	if int(total)%p.Limit != 0 {
		pages++
	}
	return Pagination{Page: p.Number, Limit: p.Limit, Total: total, TotalPages: pages}, nil
}
