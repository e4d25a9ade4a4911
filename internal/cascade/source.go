package cascade

import (
	"context"

	"github.com/alexanderramin/examdesk/internal/api"
	"github.com/alexanderramin/examdesk/internal/domain"
)

// FromAPI builds Loaders backed by the platform API.
func FromAPI(c *api.Client) Loaders {
	return Loaders{
		Batches: func(ctx context.Context, _ string) ([]Option, error) {
			items, err := c.ListBatches(ctx)
			return toOptions(items, err, func(b domain.Batch) Option { return Option{ID: b.ID, Label: b.Name} })
		},
		Courses: func(ctx context.Context, batchID string) ([]Option, error) {
			items, err := c.ListCourses(ctx, batchID)
			return toOptions(items, err, func(x domain.Course) Option { return Option{ID: x.ID, Label: labelWithCode(x.Name, x.Code)} })
		},
		Branches: func(ctx context.Context, courseID string) ([]Option, error) {
			items, err := c.ListBranches(ctx, courseID)
			return toOptions(items, err, func(x domain.Branch) Option { return Option{ID: x.ID, Label: labelWithCode(x.Name, x.Code)} })
		},
		Sections: func(ctx context.Context, branchID string) ([]Option, error) {
			items, err := c.ListSections(ctx, branchID)
			return toOptions(items, err, func(s domain.Section) Option { return Option{ID: s.ID, Label: s.Name} })
		},
		Faculty: func(ctx context.Context, _ string) ([]Option, error) {
			items, err := c.ListFaculty(ctx)
			return toOptions(items, err, func(f domain.Faculty) Option {
				label := f.Name
				if f.Department != "" {
					label += " · " + f.Department
				}
				return Option{ID: f.ID, Label: label}
			})
		},
	}
}

func toOptions[T any](items []T, err error, fn func(T) Option) ([]Option, error) {
	if err != nil {
		return nil, err
	}
	out := make([]Option, len(items))
	for i, it := range items {
		out[i] = fn(it)
	}
	return out, nil
}

func labelWithCode(name, code string) string {
	if code == "" {
		return name
	}
	return name + " (" + code + ")"
}
