package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/model"
	"github.com/schoolstock/stockroom/internal/store"
)

// CoursesHandler handles course and course item endpoints.
type CoursesHandler struct {
	DB *sql.DB
}

type courseDetail struct {
	*model.Course
	Items []model.CourseItem `json:"items"`
}

// List handles GET /api/courses.
func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := store.ListCourses(r.Context(), h.DB, ownerID(r), model.CourseStatus(trimmedQuery(r, "status")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	jsonResponse(w, http.StatusOK, courses)
}

// Create handles POST /api/courses.
func (h *CoursesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := store.CreateCourse(r.Context(), h.DB, ownerID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// Get handles GET /api/courses/{id}, including the course's items.
func (h *CoursesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := store.GetCourse(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := store.ListCourseItems(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.CourseItem{}
	}
	jsonResponse(w, http.StatusOK, courseDetail{Course: c, Items: items})
}

// Update handles PUT /api/courses/{id}.
func (h *CoursesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in model.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := store.UpdateCourse(r.Context(), h.DB, ownerID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Delete handles DELETE /api/courses/{id}. The course's items go with it.
func (h *CoursesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.DeleteCourse(r.Context(), h.DB, ownerID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "course deleted"})
}

// ListItems handles GET /api/courses/{id}/items.
func (h *CoursesHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := store.ListCourseItems(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.CourseItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// AddItem handles POST /api/courses/{id}/items.
func (h *CoursesHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in model.CourseItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := store.AddCourseItem(r.Context(), h.DB, ownerID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// DeleteItem handles DELETE /api/courses/items/{id}.
func (h *CoursesHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.DeleteCourseItem(r.Context(), h.DB, ownerID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "course item deleted"})
}

// ReturnItem handles POST /api/courses/items/{id}/return.
func (h *CoursesHandler) ReturnItem(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, store.ReturnCourseItem)
}

// OutstockItem handles POST /api/courses/items/{id}/outstock.
func (h *CoursesHandler) OutstockItem(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, store.OutstockCourseItem)
}

type settleFunc = func(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.CourseItem, error)

func (h *CoursesHandler) settle(w http.ResponseWriter, r *http.Request, fn settleFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := fn(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}
