package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/alexanderramin/examdesk/internal/api"
	"github.com/alexanderramin/examdesk/internal/cli/formatter"
	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// field maps one flag onto a string or int field of T. Exactly one of str
// and num is set.
type field[T any] struct {
	flag  string
	usage string
	str   func(*T) *string
	num   func(*T) *int
}

func bindFields[T any](fs *pflag.FlagSet, v *T, fields []field[T]) {
	for _, f := range fields {
		if f.num != nil {
			fs.IntVar(f.num(v), f.flag, 0, f.usage)
		} else {
			fs.StringVar(f.str(v), f.flag, "", f.usage)
		}
	}
}

// applyChanged copies the fields whose flags were set from patch onto dst
// and reports how many it copied.
func applyChanged[T any](fs *pflag.FlagSet, dst *T, patch *T, fields []field[T]) int {
	n := 0
	for _, f := range fields {
		if !fs.Changed(f.flag) {
			continue
		}
		if f.num != nil {
			*f.num(dst) = *f.num(patch)
		} else {
			*f.str(dst) = *f.str(patch)
		}
		n++
	}
	return n
}

// resource describes how one entity kind is managed from the command line.
// The client funcs take the client first so method expressions fit.
type resource[T any] struct {
	noun    string
	headers []string
	row     func(T) []string
	id      func(*T) *string
	name    func(T) string

	fields   []field[T]
	required []string
	// prepare fills defaults on a new record before it is validated.
	prepare func(*T)
	check   func(T) error
	// detail lists the labelled fields "show" prints; nil means no show command.
	detail func(T) [][2]string

	// parentFlag names the required filter flag, or "" for top-level lists.
	parentFlag string
	list       func(c *api.Client, ctx context.Context, parentID string) ([]T, error)
	get        func(c *api.Client, ctx context.Context, id string) (T, error)
	create     func(c *api.Client, ctx context.Context, v T) (T, error)
	update     func(c *api.Client, ctx context.Context, v T) (T, error)
	remove     func(c *api.Client, ctx context.Context, id string) error
}

func newResourceCmd[T any](app *App, use, short string, r resource[T]) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(
		newListCmd(app, r),
		newAddCmd(app, r),
		newUpdateCmd(app, r),
		newRemoveCmd(app, r),
	)
	if r.detail != nil {
		cmd.AddCommand(newShowCmd(app, r))
	}
	return cmd
}

func newListCmd[T any](app *App, r resource[T]) *cobra.Command {
	var parentID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s records", r.noun),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := r.list(app.API, cmd.Context(), parentID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(items))
			for _, it := range items {
				rows = append(rows, r.row(it))
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable(r.headers, rows))
			return nil
		},
	}

	if r.parentFlag != "" {
		cmd.Flags().StringVar(&parentID, r.parentFlag, "", "Parent ID to list under")
		_ = cmd.MarkFlagRequired(r.parentFlag)
	}
	return cmd
}

func newAddCmd[T any](app *App, r resource[T]) *cobra.Command {
	var v T

	cmd := &cobra.Command{
		Use:   "add",
		Short: fmt.Sprintf("Add a %s", r.noun),
		RunE: func(cmd *cobra.Command, args []string) error {
			if r.prepare != nil {
				r.prepare(&v)
			}
			if r.check != nil {
				if err := r.check(v); err != nil {
					return err
				}
			}
			created, err := r.create(app.API, cmd.Context(), v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("Created %s %s %s",
				r.noun, formatter.Bold(r.name(created)), formatter.Dim("("+*r.id(&created)+")"))))
			return nil
		},
	}

	bindFields(cmd.Flags(), &v, r.fields)
	for _, name := range r.required {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// newUpdateCmd fetches the record and sends it back with the flags the
// user set applied on top.
func newUpdateCmd[T any](app *App, r resource[T]) *cobra.Command {
	var patch T

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: fmt.Sprintf("Change fields of a %s", r.noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current, err := r.get(app.API, ctx, args[0])
			if err != nil {
				return err
			}
			if applyChanged(cmd.Flags(), &current, &patch, r.fields) == 0 {
				return errors.New("nothing to update: set at least one field flag")
			}
			*r.id(&current) = args[0]
			if r.check != nil {
				if err := r.check(current); err != nil {
					return err
				}
			}

			updated, err := r.update(app.API, ctx, current)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("Updated %s %s %s",
				r.noun, formatter.Bold(r.name(updated)), formatter.Dim("("+args[0]+")"))))
			return nil
		},
	}

	bindFields(cmd.Flags(), &patch, r.fields)
	return cmd
}

func newRemoveCmd[T any](app *App, r resource[T]) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   fmt.Sprintf("Remove a %s", r.noun),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.remove(app.API, cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("Removed %s %s", r.noun, args[0])))
			return nil
		},
	}
}

func newShowCmd[T any](app *App, r resource[T]) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: fmt.Sprintf("Show one %s", r.noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := r.get(app.API, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.RenderBox(r.name(v), formatter.RenderFields(r.detail(v))))
			return nil
		},
	}
}

func strField[T any](flag, usage string, f func(*T) *string) field[T] {
	return field[T]{flag: flag, usage: usage, str: f}
}

func numField[T any](flag, usage string, f func(*T) *int) field[T] {
	return field[T]{flag: flag, usage: usage, num: f}
}

var facultyResource = resource[domain.Faculty]{
	noun:    "faculty",
	headers: []string{"ID", "NAME", "EMAIL", "DEPARTMENT", "DESIGNATION"},
	row: func(f domain.Faculty) []string {
		return []string{f.ID, f.Name, f.Email, formatter.OrDash(f.Department), formatter.OrDash(f.Designation)}
	},
	id:   func(f *domain.Faculty) *string { return &f.ID },
	name: func(f domain.Faculty) string { return f.Name },
	fields: []field[domain.Faculty]{
		strField("name", "Full name", func(f *domain.Faculty) *string { return &f.Name }),
		strField("email", "Email address", func(f *domain.Faculty) *string { return &f.Email }),
		strField("phone", "Phone number", func(f *domain.Faculty) *string { return &f.Phone }),
		strField("department", "Department", func(f *domain.Faculty) *string { return &f.Department }),
		strField("designation", "Designation", func(f *domain.Faculty) *string { return &f.Designation }),
	},
	required: []string{"name", "email"},
	detail: func(f domain.Faculty) [][2]string {
		return [][2]string{
			{"ID", f.ID},
			{"Email", f.Email},
			{"Phone", f.Phone},
			{"Department", f.Department},
			{"Designation", f.Designation},
		}
	},
	list: func(c *api.Client, ctx context.Context, _ string) ([]domain.Faculty, error) {
		return c.ListFaculty(ctx)
	},
	get:    (*api.Client).GetFaculty,
	create: (*api.Client).CreateFaculty,
	update: (*api.Client).UpdateFaculty,
	remove: (*api.Client).DeleteFaculty,
}

var studentResource = resource[domain.Student]{
	noun:    "student",
	headers: []string{"ID", "NAME", "ROLL NO", "EMAIL", "SECTION"},
	row: func(s domain.Student) []string {
		return []string{s.ID, s.Name, s.RollNumber, s.Email, formatter.OrDash(s.SectionID)}
	},
	id:   func(s *domain.Student) *string { return &s.ID },
	name: func(s domain.Student) string { return s.Name },
	fields: []field[domain.Student]{
		strField("name", "Full name", func(s *domain.Student) *string { return &s.Name }),
		strField("email", "Email address", func(s *domain.Student) *string { return &s.Email }),
		strField("roll", "Roll number", func(s *domain.Student) *string { return &s.RollNumber }),
		strField("batch", "Batch ID", func(s *domain.Student) *string { return &s.BatchID }),
		strField("course", "Course ID", func(s *domain.Student) *string { return &s.CourseID }),
		strField("branch", "Branch ID", func(s *domain.Student) *string { return &s.BranchID }),
		strField("section", "Section ID", func(s *domain.Student) *string { return &s.SectionID }),
	},
	required: []string{"name", "roll"},
	detail: func(s domain.Student) [][2]string {
		return [][2]string{
			{"ID", s.ID},
			{"Roll number", s.RollNumber},
			{"Email", s.Email},
			{"Batch", s.BatchID},
			{"Course", s.CourseID},
			{"Branch", s.BranchID},
			{"Section", s.SectionID},
		}
	},
	list: func(c *api.Client, ctx context.Context, _ string) ([]domain.Student, error) {
		return c.ListStudents(ctx)
	},
	get:    (*api.Client).GetStudent,
	create: (*api.Client).CreateStudent,
	update: (*api.Client).UpdateStudent,
	remove: (*api.Client).DeleteStudent,
}

var batchResource = resource[domain.Batch]{
	noun:    "batch",
	headers: []string{"ID", "NAME", "YEARS"},
	row: func(b domain.Batch) []string {
		return []string{b.ID, b.Name, fmt.Sprintf("%d–%d", b.StartYear, b.EndYear)}
	},
	id:   func(b *domain.Batch) *string { return &b.ID },
	name: func(b domain.Batch) string { return b.Name },
	fields: []field[domain.Batch]{
		strField("name", "Batch name (defaults to START-END)", func(b *domain.Batch) *string { return &b.Name }),
		numField("start-year", "First academic year", func(b *domain.Batch) *int { return &b.StartYear }),
		numField("end-year", "Final academic year", func(b *domain.Batch) *int { return &b.EndYear }),
	},
	required: []string{"start-year", "end-year"},
	prepare: func(b *domain.Batch) {
		if b.Name == "" {
			b.Name = strconv.Itoa(b.StartYear) + "-" + strconv.Itoa(b.EndYear)
		}
	},
	check: func(b domain.Batch) error {
		if b.EndYear != 0 && b.EndYear < b.StartYear {
			return fmt.Errorf("--end-year %d is before --start-year %d", b.EndYear, b.StartYear)
		}
		return nil
	},
	list: func(c *api.Client, ctx context.Context, _ string) ([]domain.Batch, error) {
		return c.ListBatches(ctx)
	},
	get:    (*api.Client).GetBatch,
	create: (*api.Client).CreateBatch,
	update: (*api.Client).UpdateBatch,
	remove: (*api.Client).DeleteBatch,
}

var courseResource = resource[domain.Course]{
	noun:    "course",
	headers: []string{"ID", "CODE", "NAME"},
	row:     func(c domain.Course) []string { return []string{c.ID, c.Code, c.Name} },
	id:      func(c *domain.Course) *string { return &c.ID },
	name:    func(c domain.Course) string { return c.Name },
	fields: []field[domain.Course]{
		strField("name", "Course name", func(c *domain.Course) *string { return &c.Name }),
		strField("code", "Short code", func(c *domain.Course) *string { return &c.Code }),
		strField("batch", "Batch ID", func(c *domain.Course) *string { return &c.BatchID }),
	},
	required:   []string{"name", "batch"},
	parentFlag: "batch",
	list:       (*api.Client).ListCourses,
	get:        (*api.Client).GetCourse,
	create:     (*api.Client).CreateCourse,
	update:     (*api.Client).UpdateCourse,
	remove:     (*api.Client).DeleteCourse,
}

var branchResource = resource[domain.Branch]{
	noun:    "branch",
	headers: []string{"ID", "CODE", "NAME"},
	row:     func(b domain.Branch) []string { return []string{b.ID, b.Code, b.Name} },
	id:      func(b *domain.Branch) *string { return &b.ID },
	name:    func(b domain.Branch) string { return b.Name },
	fields: []field[domain.Branch]{
		strField("name", "Branch name", func(b *domain.Branch) *string { return &b.Name }),
		strField("code", "Short code", func(b *domain.Branch) *string { return &b.Code }),
		strField("course", "Course ID", func(b *domain.Branch) *string { return &b.CourseID }),
	},
	required:   []string{"name", "course"},
	parentFlag: "course",
	list:       (*api.Client).ListBranches,
	get:        (*api.Client).GetBranch,
	create:     (*api.Client).CreateBranch,
	update:     (*api.Client).UpdateBranch,
	remove:     (*api.Client).DeleteBranch,
}

var sectionResource = resource[domain.Section]{
	noun:    "section",
	headers: []string{"ID", "NAME"},
	row:     func(s domain.Section) []string { return []string{s.ID, s.Name} },
	id:      func(s *domain.Section) *string { return &s.ID },
	name:    func(s domain.Section) string { return s.Name },
	fields: []field[domain.Section]{
		strField("name", "Section name", func(s *domain.Section) *string { return &s.Name }),
		strField("branch", "Branch ID", func(s *domain.Section) *string { return &s.BranchID }),
	},
	required:   []string{"name", "branch"},
	parentFlag: "branch",
	list:       (*api.Client).ListSections,
	get:        (*api.Client).GetSection,
	create:     (*api.Client).CreateSection,
	update:     (*api.Client).UpdateSection,
	remove:     (*api.Client).DeleteSection,
}

func newFacultyCmd(app *App) *cobra.Command {
	return newResourceCmd(app, "faculty", "Manage faculty", facultyResource)
}

func newStudentCmd(app *App) *cobra.Command {
	return newResourceCmd(app, "student", "Manage students", studentResource)
}

func newBatchCmd(app *App) *cobra.Command {
	return newResourceCmd(app, "batch", "Manage batches", batchResource)
}

func newCourseCmd(app *App) *cobra.Command {
	return newResourceCmd(app, "course", "Manage courses within a batch", courseResource)
}

func newBranchCmd(app *App) *cobra.Command {
	return newResourceCmd(app, "branch", "Manage branches within a course", branchResource)
}

func newSectionCmd(app *App) *cobra.Command {
	return newResourceCmd(app, "section", "Manage sections within a branch", sectionResource)
}
