// Package importer loads students and their scores from YAML fixtures and
// replays them through the command handlers, so imported data goes through
// the same validation and events as API writes.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gradebook-hub/gradebook/internal/application/command"
	"github.com/gradebook-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// Fixture is the document root:
//
//	students:
//	  - name: Ada Lovelace
//	    department: CS
//	    scores:
//	      - subject: Math
//	        score: 95
type Fixture struct {
	Students []StudentFixture `yaml:"students" validate:"dive"`
}

// StudentFixture is one student and the scores to record for them, in order.
type StudentFixture struct {
	Name       string         `yaml:"name" validate:"required"`
	Department string         `yaml:"department" validate:"required"`
	Scores     []ScoreFixture `yaml:"scores" validate:"dive"`
}

// ScoreFixture is a single score. Score is a pointer so a missing value is
// rejected instead of read as 0.
type ScoreFixture struct {
	Subject string   `yaml:"subject" validate:"required"`
	Score   *float64 `yaml:"score" validate:"required"`
}

// Parse decodes and validates a fixture. Unknown keys are rejected.
func Parse(r io.Reader) (*Fixture, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("fixture is empty")
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}

	return &f, nil
}

// ParseFile reads and parses the fixture at path.
func ParseFile(path string) (*Fixture, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// ══════════════════════════════════════════════════════════════════════════════
// IMPORTER
// ══════════════════════════════════════════════════════════════════════════════

// Result counts what an import wrote.
type Result struct {
	StudentsCreated int
	ScoresCreated   int
	ScoresUpdated   int
}

// Importer writes fixtures through the command handlers.
type Importer struct {
	createStudent *command.CreateStudentHandler
	upsertScore   *command.UpsertScoreHandler
	logger        *slog.Logger
}

// New creates an Importer.
func New(createStudent *command.CreateStudentHandler, upsertScore *command.UpsertScoreHandler, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{
		createStudent: createStudent,
		upsertScore:   upsertScore,
		logger:        log.With(logger.Component("importer")),
	}
}

// Import creates every student of f and then records their scores. It stops
// at the first failure; rows written before it are kept, and the partial
// Result is returned with the error.
func (im *Importer) Import(ctx context.Context, f *Fixture) (Result, error) {
	var res Result

	for i, sf := range f.Students {
		st, err := im.createStudent.Handle(ctx, command.CreateStudentCommand{
			Name:       sf.Name,
			Department: sf.Department,
		})
		if err != nil {
			return res, fmt.Errorf("student #%d (%q): %w", i+1, sf.Name, err)
		}
		res.StudentsCreated++

		for _, sc := range sf.Scores {
			up, err := im.upsertScore.Handle(ctx, command.UpsertScoreCommand{
				StudentID: st.ID,
				Subject:   sc.Subject,
				Value:     *sc.Score,
			})
			if err != nil {
				return res, fmt.Errorf("student #%d (%q) subject %q: %w", i+1, sf.Name, sc.Subject, err)
			}
			if up.Created {
				res.ScoresCreated++
			} else {
				res.ScoresUpdated++
			}
		}

		im.logger.Debug("student imported",
			logger.StudentID(st.ID),
			logger.Department(st.Department),
			slog.Int("scores", len(sf.Scores)),
		)
	}

	im.logger.Info("import finished",
		logger.Operation("import"),
		slog.Int("students", res.StudentsCreated),
		slog.Int("scores_created", res.ScoresCreated),
		slog.Int("scores_updated", res.ScoresUpdated),
	)

	return res, nil
}
