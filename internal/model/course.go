package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CourseStatus is the lifecycle state of a course.
type CourseStatus string

// Course statuses.
const (
	CoursePlanned    CourseStatus = "planned"
	CourseInProgress CourseStatus = "in_progress"
	CourseCompleted  CourseStatus = "completed"
	CourseCancelled  CourseStatus = "cancelled"
)

// Course is a class or workshop that reserves materials.
type Course struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	CourseName  string       `json:"course_name"`
	Description string       `json:"description,omitempty"`
	CourseDate  string       `json:"course_date"`
	Instructor  string       `json:"instructor,omitempty"`
	Status      CourseStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// CourseInput holds the editable fields of a course.
type CourseInput struct {
	CourseName  string       `json:"course_name" validate:"required,max=100"`
	Description string       `json:"description" validate:"max=500"`
	CourseDate  string       `json:"course_date" validate:"required,datetime=2006-01-02"`
	Instructor  string       `json:"instructor" validate:"max=100"`
	Status      CourseStatus `json:"status" validate:"required,oneof=planned in_progress completed cancelled"`
}

// Normalize trims text fields and defaults the status to planned.
func (in *CourseInput) Normalize() {
	in.CourseName = strings.TrimSpace(in.CourseName)
	in.Description = strings.TrimSpace(in.Description)
	in.Instructor = strings.TrimSpace(in.Instructor)
	if in.Status == "" {
		in.Status = CoursePlanned
	}
}

// CourseItemStatus summarizes where reserved course material went.
type CourseItemStatus string

// Course item statuses.
const (
	CourseItemReserved   CourseItemStatus = "reserved"
	CourseItemReturned   CourseItemStatus = "returned"
	CourseItemOutstocked CourseItemStatus = "outstocked"
	CourseItemPartial    CourseItemStatus = "partial"
)

// CourseItem is material reserved for a course. Returned plus outstocked
// never exceeds reserved.
type CourseItem struct {
	ID                 uuid.UUID        `json:"id"`
	OwnerID            uuid.UUID        `json:"owner_id"`
	CourseID           uuid.UUID        `json:"course_id"`
	ItemName           string           `json:"item_name"`
	QuantityReserved   int              `json:"quantity_reserved"`
	QuantityReturned   int              `json:"quantity_returned"`
	QuantityOutstocked int              `json:"quantity_outstocked"`
	Status             CourseItemStatus `json:"status"`
	Notes              string           `json:"notes,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Outstanding returns the quantity neither returned nor outstocked.
func (c *CourseItem) Outstanding() int {
	return c.QuantityReserved - c.QuantityReturned - c.QuantityOutstocked
}

// ReturnToStock returns everything not already outstocked and reports how
// many units moved.
func (c *CourseItem) ReturnToStock() int {
	moved := c.Outstanding()
	c.QuantityReturned = c.QuantityReserved - c.QuantityOutstocked
	if c.QuantityOutstocked > 0 {
		c.Status = CourseItemPartial
	} else {
		c.Status = CourseItemReturned
	}
	return moved
}

// Outstock consumes everything not already returned and reports how many
// units moved.
func (c *CourseItem) Outstock() int {
	moved := c.Outstanding()
	c.QuantityOutstocked = c.QuantityReserved - c.QuantityReturned
	if c.QuantityReturned > 0 {
		c.Status = CourseItemPartial
	} else {
		c.Status = CourseItemOutstocked
	}
	return moved
}

// DeriveCourseItemStatus computes the status from the three quantities.
func DeriveCourseItemStatus(reserved, returned, outstocked int) CourseItemStatus {
	switch {
	case returned == 0 && outstocked == 0:
		return CourseItemReserved
	case returned == reserved:
		return CourseItemReturned
	case outstocked == reserved:
		return CourseItemOutstocked
	default:
		return CourseItemPartial
	}
}

// CourseItemInput reserves material for a course.
type CourseItemInput struct {
	ItemName         string `json:"item_name" validate:"required,max=100"`
	QuantityReserved int    `json:"quantity_reserved" validate:"gt=0,max=99999"`
	Notes            string `json:"notes" validate:"max=500"`
}

// Normalize trims text fields.
func (in *CourseItemInput) Normalize() {
	in.ItemName = strings.TrimSpace(in.ItemName)
	in.Notes = strings.TrimSpace(in.Notes)
}
