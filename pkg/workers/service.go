package workers

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/store"
)

var requiredHeaders = []string{"Name", "Role", "Technologies", "Experience"}

// Service imports and lists worker rosters
type Service struct {
	db      *sql.DB
	events  activity.Emitter
	metrics *observability.Metrics
}

// NewService creates a roster service. events and metrics may be nil.
func NewService(db *sql.DB, events activity.Emitter, metrics *observability.Metrics) *Service {
	return &Service{db: db, events: activity.OrDiscard(events), metrics: metrics}
}

type row struct {
	line         int
	name         string
	role         string
	technologies []string
	experience   []int
}

// Import reads a roster from r and stores every valid row. Rows that fail
// validation or name a worker the workspace already has are reported in the
// result and skipped; a malformed header rejects the whole file.
func (s *Service) Import(ctx context.Context, actorID, workspaceID, source string, r io.Reader) (*ImportResult, error) {
	if source == "" {
		source = DefaultSource
	}
	logger := observability.FromContext(ctx).WithField("workspace_id", workspaceID)

	rows, errs, err := parse(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Imported: []ImportedWorker{}, Errors: errs}
	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM workspaces WHERE id = $1)", workspaceID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check workspace: %w", err)
		}
		if !exists {
			return apperrors.NotFound("Workspace not found")
		}

		now := store.Now()
		for _, w := range rows {
			var count int
			err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM workers WHERE workspace_id = $1 AND name = $2",
				workspaceID, w.name).Scan(&count)
			if err != nil {
				return fmt.Errorf("failed to check worker: %w", err)
			}
			if count > 0 {
				result.Errors = append(result.Errors, fmt.Sprintf("Line %d: Worker %q already exists", w.line, w.name))
				continue
			}

			technologies, err := json.Marshal(w.technologies)
			if err != nil {
				return fmt.Errorf("failed to encode technologies: %w", err)
			}
			experience, err := json.Marshal(w.experience)
			if err != nil {
				return fmt.Errorf("failed to encode experience: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO workers (id, workspace_id, name, role, technologies, experience, source, imported_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, uuid.NewString(), workspaceID, w.name, w.role, string(technologies), string(experience), source, now)
			if store.IsUniqueViolation(err) {
				return apperrors.Conflict("Worker roster changed during import, please retry", err)
			}
			if err != nil {
				return fmt.Errorf("failed to insert worker: %w", err)
			}

			result.Imported = append(result.Imported, ImportedWorker{
				Name:         w.name,
				Role:         w.role,
				Technologies: len(w.technologies),
				Experience:   len(w.experience),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.TotalImported = len(result.Imported)
	result.TotalErrors = len(result.Errors)
	logger.WithField("imported", result.TotalImported).WithField("errors", result.TotalErrors).Info("imported worker roster")

	s.metrics.RecordOperation("workers", "import")
	if result.TotalImported > 0 {
		s.events.Publish(ctx, activity.Event{
			ActorID:     actorID,
			WorkspaceID: workspaceID,
			Type:        activity.TypeWorkersImport,
			Message:     fmt.Sprintf("imported %d worker(s) from %s", result.TotalImported, source),
			Meta:        map[string]any{"imported": result.TotalImported, "errors": result.TotalErrors, "source": source},
		})
	}
	return result, nil
}

// parse reads the roster. Line numbers in the returned errors are 1-based
// and count the header.
func parse(r io.Reader) ([]row, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, apperrors.BadRequest("CSV file is empty")
	}
	if err != nil {
		return nil, nil, apperrors.BadRequest(fmt.Sprintf("Failed to import CSV: %v", err))
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, nil, apperrors.BadRequest("Missing required headers: " + strings.Join(missing, ", "))
	}

	var rows []row
	var errs []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, nil, apperrors.BadRequest(fmt.Sprintf("Failed to import CSV: %v", err))
			}
			errs = append(errs, fmt.Sprintf("Line %d: Invalid data format", parseErr.StartLine))
			continue
		}
		line, _ := reader.FieldPos(0)

		field := func(name string) string {
			if i := index[name]; i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		w := row{line: line, name: field("Name"), role: field("Role")}
		if w.name == "" || w.role == "" {
			errs = append(errs, fmt.Sprintf("Line %d: Missing name or role", line))
			continue
		}
		w.technologies = splitList(field("Technologies"))
		w.experience, err = parseExperience(field("Experience"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("Line %d: Invalid experience values", line))
			continue
		}
		rows = append(rows, w)
	}
	return rows, errs, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ":") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseExperience(s string) ([]int, error) {
	out := []int{}
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > MaxExperience {
			return nil, fmt.Errorf("experience %d out of range", n)
		}
		out = append(out, n)
	}
	return out, nil
}

// List returns the workspace roster ordered by name
func (s *Service) List(ctx context.Context, workspaceID string) ([]Worker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, role, technologies, experience, source, imported_at
		FROM workers
		WHERE workspace_id = $1
		ORDER BY name ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	workers := []Worker{}
	for rows.Next() {
		var w Worker
		var technologies, experience string
		if err := rows.Scan(&w.ID, &w.WorkspaceID, &w.Name, &w.Role, &technologies, &experience, &w.Source, &w.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		if err := json.Unmarshal([]byte(technologies), &w.Technologies); err != nil {
			return nil, fmt.Errorf("failed to decode technologies: %w", err)
		}
		if err := json.Unmarshal([]byte(experience), &w.Experience); err != nil {
			return nil, fmt.Errorf("failed to decode experience: %w", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return workers, nil
}
