package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/model"
)

const courseColumns = `id, owner_id, course_name, description, course_date, instructor, status, created_at, updated_at`

func scanCourse(sc scanner) (*model.Course, error) {
	c := &model.Course{}
	var description, instructor sql.NullString
	err := sc.Scan(&c.ID, &c.OwnerID, &c.CourseName, &description, &c.CourseDate, &instructor, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Description = description.String
	c.Instructor = instructor.String
	return c, nil
}

// GetCourse returns a course by ID.
func GetCourse(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.Course, error) {
	return getCourse(ctx, db, ownerID, id)
}

func getCourse(ctx context.Context, q queryer, ownerID, id uuid.UUID) (*model.Course, error) {
	c, err := scanCourse(q.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if err != nil {
		return nil, fmt.Errorf("getting course: %w", noRows(err, "course"))
	}
	return c, nil
}

// ListCourses returns courses, latest course date first, optionally filtered
// by status.
func ListCourses(ctx context.Context, db *sql.DB, ownerID uuid.UUID, status model.CourseStatus) ([]model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE owner_id = ?`
	args := []any{ownerID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY course_date DESC, course_name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning course: %w", err)
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

// CreateCourse creates a course.
func CreateCourse(ctx context.Context, db *sql.DB, ownerID uuid.UUID, in model.CourseInput) (*model.Course, error) {
	in.Normalize()
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	id := uuid.New()
	ts := now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO courses (id, owner_id, course_name, description, course_date, instructor, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, in.CourseName, nullString(in.Description), in.CourseDate, nullString(in.Instructor), in.Status, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating course: %w", err)
	}
	return getCourse(ctx, db, ownerID, id)
}

// UpdateCourse updates a course.
func UpdateCourse(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, in model.CourseInput) (*model.Course, error) {
	in.Normalize()
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	err := execOne(ctx, db, "course",
		`UPDATE courses SET course_name = ?, description = ?, course_date = ?, instructor = ?, status = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		in.CourseName, nullString(in.Description), in.CourseDate, nullString(in.Instructor), in.Status, now(), id, ownerID,
	)
	if err != nil {
		return nil, err
	}
	return getCourse(ctx, db, ownerID, id)
}

// DeleteCourse deletes a course and its reserved items.
func DeleteCourse(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM courses WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("course")
	}
	return nil
}

const courseItemColumns = `id, owner_id, course_id, item_name, quantity_reserved, quantity_returned, quantity_outstocked,
	status, notes, created_at, updated_at`

func scanCourseItem(sc scanner) (*model.CourseItem, error) {
	c := &model.CourseItem{}
	var notes sql.NullString
	err := sc.Scan(&c.ID, &c.OwnerID, &c.CourseID, &c.ItemName, &c.QuantityReserved, &c.QuantityReturned, &c.QuantityOutstocked,
		&c.Status, &notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Notes = notes.String
	return c, nil
}

func getCourseItem(ctx context.Context, q queryer, ownerID, id uuid.UUID) (*model.CourseItem, error) {
	c, err := scanCourseItem(q.QueryRowContext(ctx,
		`SELECT `+courseItemColumns+` FROM course_items WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if err != nil {
		return nil, fmt.Errorf("getting course item: %w", noRows(err, "course item"))
	}
	return c, nil
}

// ListCourseItems returns the items reserved for a course.
func ListCourseItems(ctx context.Context, db *sql.DB, ownerID, courseID uuid.UUID) ([]model.CourseItem, error) {
	if _, err := getCourse(ctx, db, ownerID, courseID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+courseItemColumns+` FROM course_items WHERE course_id = ? AND owner_id = ? ORDER BY created_at, rowid`,
		courseID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing course items: %w", err)
	}
	defer rows.Close()

	var items []model.CourseItem
	for rows.Next() {
		c, err := scanCourseItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning course item: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// AddCourseItem reserves material for a course.
func AddCourseItem(ctx context.Context, db *sql.DB, ownerID, courseID uuid.UUID, in model.CourseItemInput) (*model.CourseItem, error) {
	in.Normalize()
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	if _, err := getCourse(ctx, db, ownerID, courseID); err != nil {
		return nil, err
	}

	id := uuid.New()
	ts := now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO course_items (id, owner_id, course_id, item_name, quantity_reserved, status, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, courseID, in.ItemName, in.QuantityReserved, model.CourseItemReserved, nullString(in.Notes), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating course item: %w", err)
	}
	return getCourseItem(ctx, db, ownerID, id)
}

// DeleteCourseItem removes a reservation.
func DeleteCourseItem(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM course_items WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting course item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("course item")
	}
	return nil
}

// ReturnCourseItem returns everything not already outstocked.
func ReturnCourseItem(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.CourseItem, error) {
	return settleCourseItem(ctx, db, ownerID, id, (*model.CourseItem).ReturnToStock)
}

// OutstockCourseItem consumes everything not already returned.
func OutstockCourseItem(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.CourseItem, error) {
	return settleCourseItem(ctx, db, ownerID, id, (*model.CourseItem).Outstock)
}

// settleCourseItem applies settle to a course item and writes the new
// quantities back, guarded on the quantities it read. An item with nothing
// outstanding is returned unchanged.
func settleCourseItem(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, settle func(*model.CourseItem) int) (*model.CourseItem, error) {
	c, err := getCourseItem(ctx, db, ownerID, id)
	if err != nil {
		return nil, err
	}
	if c.Outstanding() == 0 {
		return c, nil
	}
	prevReturned, prevOutstocked := c.QuantityReturned, c.QuantityOutstocked
	moved := settle(c)
	c.UpdatedAt = now()

	res, err := db.ExecContext(ctx,
		`UPDATE course_items SET quantity_returned = ?, quantity_outstocked = ?, status = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND quantity_returned = ? AND quantity_outstocked = ?`,
		c.QuantityReturned, c.QuantityOutstocked, c.Status, c.UpdatedAt, id, ownerID, prevReturned, prevOutstocked,
	)
	if err != nil {
		return nil, fmt.Errorf("updating course item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Newf(apperr.CodeConflict, "course item %q was modified concurrently", c.ItemName)
	}
	slog.Debug("course item settled", "course_item_id", id, "status", c.Status, "moved", moved)
	return c, nil
}
