package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/gradebook-hub/gradebook/internal/app"
	"github.com/gradebook-hub/gradebook/internal/application/importer"
	"github.com/gradebook-hub/gradebook/internal/application/query"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/persistence"
)

type commandFunc func(ctx context.Context, a *app.App, args []string, out io.Writer) error

var commands = map[string]commandFunc{
	"import":     importCmd,
	"students":   studentsCmd,
	"search":     searchCmd,
	"average":    averageCmd,
	"top":        topCmd,
	"department": departmentCmd,
	"migrate":    migrateCmd,
}

var errUsage = errors.New("wrong number of arguments")

// ══════════════════════════════════════════════════════════════════════════════
// WRITE COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func importCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("import <file.yaml>: %w", errUsage)
	}

	fixture, err := importer.ParseFile(args[0])
	if err != nil {
		return err
	}

	im := importer.New(a.Commands.CreateStudent, a.Commands.UpsertScore, nil)
	res, err := im.Import(ctx, fixture)

	color.New(color.FgGreen).Fprintf(out, "students created: %d, scores created: %d, scores updated: %d\n",
		res.StudentsCreated, res.ScoresCreated, res.ScoresUpdated)
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// READ COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func studentsCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("students", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	skip := fs.Int("skip", 0, "students to skip")
	limit := fs.Int("limit", 100, "maximum students to show")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("students: %w", err)
	}

	list, err := a.Queries.ListStudents.Handle(ctx, query.ListStudentsQuery{Skip: *skip, Limit: *limit})
	if err != nil {
		return err
	}
	renderStudents(out, list)
	return nil
}

func searchCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("search <name>: %w", errUsage)
	}

	list, err := a.Queries.SearchStudents.Handle(ctx, query.SearchStudentsQuery{Name: args[0]})
	if err != nil {
		return err
	}
	renderStudents(out, list)
	return nil
}

func averageCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("average <student-id>: %w", errUsage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return shared.ValidationError("cli", "Average", "student_id", shared.ErrValidation,
			"student id must be a positive integer")
	}

	avg, err := a.Queries.StudentAverage.Handle(ctx, query.GetStudentAverageQuery{StudentID: id})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Student ID", "Average"})
	table.Append([]string{strconv.FormatInt(avg.StudentID, 10), formatScore(avg.Average)})
	table.Render()
	return nil
}

func topCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("top <subject>: %w", errUsage)
	}

	top, err := a.Queries.TopScorer.Handle(ctx, query.GetTopScorerQuery{Subject: args[0]})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Student ID", "Subject", "Score"})
	table.Append([]string{strconv.FormatInt(top.StudentID, 10), top.Subject, formatScore(top.Value)})
	table.Render()
	return nil
}

func departmentCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("department <name>: %w", errUsage)
	}

	avg, err := a.Queries.DepartmentAverage.Handle(ctx, query.GetDepartmentAverageQuery{Department: args[0]})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Department", "Average", "Students", "Scores"})
	table.Append([]string{
		avg.Department,
		formatScore(avg.Average),
		strconv.Itoa(avg.StudentCount),
		strconv.Itoa(avg.ScoreCount),
	})
	table.Render()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

func migrateCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 1 || args[0] != "status" {
		return fmt.Errorf("migrate status: %w", errUsage)
	}

	status, err := a.Store.MigrationStatus(ctx)
	if errors.Is(err, persistence.ErrNoMigrations) {
		color.New(color.FgYellow).Fprintf(out, "%s schema is applied on open; no versioned migrations\n", a.Store.Backend)
		return nil
	}
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Version", "Name", "Applied", "Applied At"})
	for _, m := range status {
		appliedAt := "-"
		if m.IsApplied {
			appliedAt = m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		table.Append([]string{strconv.Itoa(m.Version), m.Name, strconv.FormatBool(m.IsApplied), appliedAt})
	}
	table.Render()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

func renderStudents(out io.Writer, list []*student.Student) {
	if len(list) == 0 {
		color.New(color.FgYellow).Fprintln(out, "no students found")
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Name", "Department"})
	for _, st := range list {
		table.Append([]string{strconv.FormatInt(st.ID, 10), st.Name, st.Department})
	}
	table.Render()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
