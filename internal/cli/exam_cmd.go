package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/alexanderramin/examdesk/internal/cli/formatter"
	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/alexanderramin/examdesk/internal/examform"
	"github.com/alexanderramin/examdesk/internal/repository"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var errNoDraftStore = errors.New("no local draft store configured")

func newExamCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exam",
		Short: "Create and manage exams",
	}

	cmd.AddCommand(
		newExamListCmd(app),
		newExamShowCmd(app),
		newExamCreateCmd(app),
		newExamRemoveCmd(app),
		newExamDraftsCmd(app),
		newExamResubmitCmd(app),
	)
	return cmd
}

func newExamListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List exams on the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			exams, err := app.API.ListExams(cmd.Context())
			if err != nil {
				return err
			}

			now := app.now()
			rows := make([][]string, 0, len(exams))
			for _, e := range exams {
				rows = append(rows, []string{
					e.ID,
					e.Title,
					formatter.StatusPill(e.Status),
					formatter.ModeBadge(e.ScheduleMode),
					strconv.Itoa(e.TotalMarks),
					createdLabel(e.CreatedAt, now),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable(
				[]string{"ID", "TITLE", "STATUS", "MODE", "MARKS", "CREATED"}, rows))
			return nil
		},
	}
}

func newExamShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one exam",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.API.GetExam(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.RenderBox(e.Title, formatter.RenderFields([][2]string{
				{"ID", e.ID},
				{"Status", formatter.StatusPill(e.Status)},
				{"Schedule", formatter.ModeBadge(e.ScheduleMode)},
				{"Questions", string(e.QuestionMode)},
				{"Total marks", strconv.Itoa(e.TotalMarks)},
				{"Created", createdLabel(e.CreatedAt, app.now())},
			})))
			return nil
		},
	}
}

func newExamCreateCmd(app *App) *cobra.Command {
	var (
		file    string
		publish bool
		draft   bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an exam interactively or from a YAML/JSON file",
		Long: `Create an exam.

In a terminal without --file, a step-by-step wizard collects the exam details,
audience, schedule, and either the paper structure or the questions.

With --file the exam is read from a document whose keys are status, basic,
audience, schedule, structure, questions and facultyIds. A submission the
platform rejects is kept as a local draft; see "exam drafts".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if publish && draft {
				return errors.New("--publish and --draft are mutually exclusive")
			}
			if file == "" {
				if !app.interactive() {
					return errors.New("--file is required when not running in a terminal")
				}
				return runExamWizard(cmd, app)
			}

			f, err := examform.LoadFile(file)
			if err != nil {
				return err
			}
			switch {
			case publish:
				f.Status = domain.StatusPublished
			case draft:
				f.Status = domain.StatusDraft
			}
			return submitFile(cmd, app, f)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Exam document (.yaml, .yml or .json)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish regardless of the file's status")
	cmd.Flags().BoolVar(&draft, "draft", false, "Save as a draft regardless of the file's status")
	return cmd
}

func submitFile(cmd *cobra.Command, app *App, f examform.File) error {
	out := cmd.OutOrStdout()
	agg := examform.NewAggregator(app.Drafts, app.logger())

	if problems := agg.Load(f); len(problems) > 0 {
		printProblems(out, agg.Registered(), problems)
		return fmt.Errorf("%d step(s) of the exam file are invalid", len(problems))
	}

	msg, err := agg.Submit(cmd.Context(), app.API, f.Status)
	if err != nil {
		printSubmitFailure(out, err)
		return err
	}
	if msg == "" {
		msg = "Exam created"
	}
	fmt.Fprintln(out, formatter.Success(msg))
	return nil
}

func printProblems(out io.Writer, order []examform.StepKey, problems map[examform.StepKey]examform.FieldErrors) {
	for _, k := range order {
		errs, ok := problems[k]
		if !ok {
			continue
		}
		fmt.Fprintln(out, formatter.Failure(formatter.Bold(k.Title())))
		fmt.Fprintf(out, "  %s\n", errs.Error())
	}
}

func printSubmitFailure(out io.Writer, err error) {
	var se *examform.SubmitError
	if errors.As(err, &se) && se.DraftID != "" {
		fmt.Fprintln(out, formatter.Dim(fmt.Sprintf(
			"Saved locally as draft %s. Retry with `examdesk exam resubmit %s`.", se.DraftID, se.DraftID)))
	}
}

func runExamWizard(cmd *cobra.Command, app *App) error {
	w, err := newExamWizard(cmd.Context(), app)
	if err != nil {
		return err
	}

	final, err := tea.NewProgram(w, tea.WithContext(cmd.Context()), tea.WithOutput(cmd.OutOrStdout())).Run()
	if err != nil {
		return fmt.Errorf("running exam wizard: %w", err)
	}
	w = final.(*examWizard)

	out := cmd.OutOrStdout()
	switch {
	case w.result != "":
		fmt.Fprintln(out, formatter.Success(w.result))
	case w.submitErr != nil:
		fmt.Fprintln(out, formatter.Failure(Friendly(w.submitErr)))
		printSubmitFailure(out, w.submitErr)
	default:
		fmt.Fprintln(out, formatter.Dim("Cancelled."))
	}
	return nil
}

func newExamRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an exam on the platform",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.API.DeleteExam(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Removed exam "+args[0]))
			return nil
		},
	}
}

func newExamDraftsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "List exams saved locally after a failed submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Drafts == nil {
				return errNoDraftStore
			}
			drafts, err := app.Drafts.List(cmd.Context())
			if err != nil {
				return err
			}

			now := app.now()
			rows := make([][]string, 0, len(drafts))
			for _, d := range drafts {
				rows = append(rows, []string{
					d.ID,
					d.Title,
					formatter.StatusPill(d.Status),
					formatter.RelativeTime(d.SavedAt, now),
					formatter.StyleRed.Render(d.LastError),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable(
				[]string{"ID", "TITLE", "STATUS", "SAVED", "LAST ERROR"}, rows))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "discard <draft-id>",
		Short: "Delete a local draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Drafts == nil {
				return errNoDraftStore
			}
			if err := app.Drafts.Delete(cmd.Context(), args[0]); err != nil {
				return draftErr(args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Discarded draft "+args[0]))
			return nil
		},
	})
	return cmd
}

func newExamResubmitCmd(app *App) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "resubmit <draft-id>",
		Short: "Send a locally saved draft to the platform again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Drafts == nil {
				return errNoDraftStore
			}
			ctx := cmd.Context()
			d, err := app.Drafts.GetByID(ctx, args[0])
			if err != nil {
				return draftErr(args[0], err)
			}

			payload := d.Payload
			if publish {
				payload.Status = domain.StatusPublished
			}

			msg, err := app.API.CreateExam(ctx, payload)
			if err != nil {
				d.LastError = err.Error()
				d.SavedAt = app.now().UTC()
				if saveErr := app.Drafts.Save(ctx, d); saveErr != nil {
					app.logger().Error("draft_update_failed", "draft", d.ID, "error", saveErr.Error())
				}
				return err
			}
			if err := app.Drafts.Delete(ctx, d.ID); err != nil {
				app.logger().Warn("draft_delete_failed", "draft", d.ID, "error", err.Error())
			}

			if msg == "" {
				msg = "Exam created"
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(msg))
			return nil
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", false, "Publish instead of keeping the draft's saved status")
	return cmd
}

// createdLabel renders the platform's RFC 3339 timestamp relative to now,
// or as sent when it does not parse.
func createdLabel(raw string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return formatter.OrDash(raw)
	}
	return formatter.RelativeTime(t, now)
}

func draftErr(id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("no local draft %q", id)
	}
	return err
}
