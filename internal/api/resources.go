package api

import (
	"context"
	"net/http"

	"github.com/alexanderramin/examdesk/internal/domain"
)

const (
	pathFaculty  = "/faculty"
	pathStudents = "/students"
	pathBatches  = "/batches"
	pathCourses  = "/courses"
	pathBranches = "/branches"
	pathSections = "/sections"
	pathExams    = "/exams"
)

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	env, err := call[[]T](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []T{}, nil
	}
	return env.Data, nil
}

func get[T any](ctx context.Context, c *Client, path string) (T, error) {
	env, err := call[T](ctx, c, http.MethodGet, path, nil)
	return env.Data, err
}

func create[T any](ctx context.Context, c *Client, path string, v T) (T, error) {
	env, err := call[T](ctx, c, http.MethodPost, path, v)
	return env.Data, err
}

func update[T any](ctx context.Context, c *Client, path string, v T) (T, error) {
	env, err := call[T](ctx, c, http.MethodPut, path, v)
	return env.Data, err
}

func remove(ctx context.Context, c *Client, path string) error {
	_, err := call[struct{}](ctx, c, http.MethodDelete, path, nil)
	return err
}

func (c *Client) ListFaculty(ctx context.Context) ([]domain.Faculty, error) {
	return list[domain.Faculty](ctx, c, pathFaculty)
}

func (c *Client) GetFaculty(ctx context.Context, id string) (domain.Faculty, error) {
	return get[domain.Faculty](ctx, c, itemPath(pathFaculty, id))
}

func (c *Client) CreateFaculty(ctx context.Context, f domain.Faculty) (domain.Faculty, error) {
	return create(ctx, c, pathFaculty, f)
}

func (c *Client) UpdateFaculty(ctx context.Context, f domain.Faculty) (domain.Faculty, error) {
	return update(ctx, c, itemPath(pathFaculty, f.ID), f)
}

func (c *Client) DeleteFaculty(ctx context.Context, id string) error {
	return remove(ctx, c, itemPath(pathFaculty, id))
}

func (c *Client) ListStudents(ctx context.Context) ([]domain.Student, error) {
	return list[domain.Student](ctx, c, pathStudents)
}

func (c *Client) GetStudent(ctx context.Context, id string) (domain.Student, error) {
	return get[domain.Student](ctx, c, itemPath(pathStudents, id))
}

func (c *Client) CreateStudent(ctx context.Context, s domain.Student) (domain.Student, error) {
	return create(ctx, c, pathStudents, s)
}

func (c *Client) UpdateStudent(ctx context.Context, s domain.Student) (domain.Student, error) {
	return update(ctx, c, itemPath(pathStudents, s.ID), s)
}

func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return remove(ctx, c, itemPath(pathStudents, id))
}

func (c *Client) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	return list[domain.Batch](ctx, c, pathBatches)
}

func (c *Client) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	return get[domain.Batch](ctx, c, itemPath(pathBatches, id))
}

func (c *Client) CreateBatch(ctx context.Context, b domain.Batch) (domain.Batch, error) {
	return create(ctx, c, pathBatches, b)
}

func (c *Client) UpdateBatch(ctx context.Context, b domain.Batch) (domain.Batch, error) {
	return update(ctx, c, itemPath(pathBatches, b.ID), b)
}

func (c *Client) DeleteBatch(ctx context.Context, id string) error {
	return remove(ctx, c, itemPath(pathBatches, id))
}

// ListCourses lists the courses of a batch, or every course when batchID is empty.
func (c *Client) ListCourses(ctx context.Context, batchID string) ([]domain.Course, error) {
	return list[domain.Course](ctx, c, withQuery(pathCourses, "batchId", batchID))
}

func (c *Client) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	return get[domain.Course](ctx, c, itemPath(pathCourses, id))
}

func (c *Client) CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error) {
	return create(ctx, c, pathCourses, course)
}

func (c *Client) UpdateCourse(ctx context.Context, course domain.Course) (domain.Course, error) {
	return update(ctx, c, itemPath(pathCourses, course.ID), course)
}

func (c *Client) DeleteCourse(ctx context.Context, id string) error {
	return remove(ctx, c, itemPath(pathCourses, id))
}

// ListBranches lists the branches of a course, or every branch when courseID is empty.
func (c *Client) ListBranches(ctx context.Context, courseID string) ([]domain.Branch, error) {
	return list[domain.Branch](ctx, c, withQuery(pathBranches, "courseId", courseID))
}

func (c *Client) GetBranch(ctx context.Context, id string) (domain.Branch, error) {
	return get[domain.Branch](ctx, c, itemPath(pathBranches, id))
}

func (c *Client) CreateBranch(ctx context.Context, b domain.Branch) (domain.Branch, error) {
	return create(ctx, c, pathBranches, b)
}

func (c *Client) UpdateBranch(ctx context.Context, b domain.Branch) (domain.Branch, error) {
	return update(ctx, c, itemPath(pathBranches, b.ID), b)
}

func (c *Client) DeleteBranch(ctx context.Context, id string) error {
	return remove(ctx, c, itemPath(pathBranches, id))
}

// ListSections lists the sections of a branch, or every section when branchID is empty.
func (c *Client) ListSections(ctx context.Context, branchID string) ([]domain.Section, error) {
	return list[domain.Section](ctx, c, withQuery(pathSections, "branchId", branchID))
}

func (c *Client) GetSection(ctx context.Context, id string) (domain.Section, error) {
	return get[domain.Section](ctx, c, itemPath(pathSections, id))
}

func (c *Client) CreateSection(ctx context.Context, s domain.Section) (domain.Section, error) {
	return create(ctx, c, pathSections, s)
}

func (c *Client) UpdateSection(ctx context.Context, s domain.Section) (domain.Section, error) {
	return update(ctx, c, itemPath(pathSections, s.ID), s)
}

func (c *Client) DeleteSection(ctx context.Context, id string) error {
	return remove(ctx, c, itemPath(pathSections, id))
}

func (c *Client) ListExams(ctx context.Context) ([]domain.Exam, error) {
	return list[domain.Exam](ctx, c, pathExams)
}

func (c *Client) GetExam(ctx context.Context, id string) (domain.Exam, error) {
	return get[domain.Exam](ctx, c, itemPath(pathExams, id))
}

// CreateExam submits the aggregated payload and returns the server's message.
func (c *Client) CreateExam(ctx context.Context, payload domain.ExamPayload) (string, error) {
	env, err := call[domain.Exam](ctx, c, http.MethodPost, pathExams, payload)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) DeleteExam(ctx context.Context, id string) error {
	return remove(ctx, c, itemPath(pathExams, id))
}
