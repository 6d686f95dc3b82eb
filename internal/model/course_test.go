package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturnToStock(t *testing.T) {
	c := CourseItem{QuantityReserved: 10}
	moved := c.ReturnToStock()

	assert.Equal(t, 10, moved)
	assert.Equal(t, 10, c.QuantityReturned)
	assert.Equal(t, CourseItemReturned, c.Status)
}

func TestOutstockAfterPartialReturn(t *testing.T) {
	c := CourseItem{QuantityReserved: 10, QuantityReturned: 4}
	moved := c.Outstock()

	assert.Equal(t, 6, moved)
	assert.Equal(t, 6, c.QuantityOutstocked)
	assert.Equal(t, CourseItemPartial, c.Status)
	assert.LessOrEqual(t, c.QuantityReturned+c.QuantityOutstocked, c.QuantityReserved)
}

func TestReturnAfterOutstockNeverExceedsReserved(t *testing.T) {
	c := CourseItem{QuantityReserved: 8}
	c.Outstock()
	moved := c.ReturnToStock()

	assert.Equal(t, 0, moved)
	assert.Equal(t, 0, c.QuantityReturned)
	assert.Equal(t, 8, c.QuantityOutstocked)
	assert.Equal(t, CourseItemPartial, c.Status)
	assert.LessOrEqual(t, c.QuantityReturned+c.QuantityOutstocked, c.QuantityReserved)
}

func TestRepeatedReturnIsStable(t *testing.T) {
	c := CourseItem{QuantityReserved: 5, QuantityOutstocked: 2}
	c.ReturnToStock()
	c.ReturnToStock()

	assert.Equal(t, 3, c.QuantityReturned)
	assert.Equal(t, 0, c.Outstanding())
}

func TestDeriveCourseItemStatus(t *testing.T) {
	tests := []struct {
		reserved, returned, outstocked int
		want                           CourseItemStatus
	}{
		{5, 0, 0, CourseItemReserved},
		{5, 5, 0, CourseItemReturned},
		{5, 0, 5, CourseItemOutstocked},
		{5, 2, 3, CourseItemPartial},
		{5, 2, 0, CourseItemPartial},
	}

	for _, tt := range tests {
		got := DeriveCourseItemStatus(tt.reserved, tt.returned, tt.outstocked)
		assert.Equal(t, tt.want, got, "reserved=%d returned=%d outstocked=%d", tt.reserved, tt.returned, tt.outstocked)
	}
}
