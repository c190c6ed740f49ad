package workers

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/store/storetest"
)

type recorder struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *recorder) Publish(_ context.Context, ev activity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func newService(t *testing.T) (*Service, *sql.DB, *recorder, string, string) {
	t.Helper()
	db := storetest.NewSQLite(t)
	events := &recorder{}
	owner := storetest.User(t, db, "owner@example.com", "MEMBER")
	ws := storetest.Workspace(t, db, owner, "Acme")
	return NewService(db, events, nil), db, events, owner, ws
}

const roster = `Name,Role,Technologies,Experience
Ada,Backend,Go:Postgres,8:6
Linus, Kernel , C ,10
Grace,Compiler,,`

func TestImport(t *testing.T) {
	ctx := context.Background()
	svc, _, events, owner, ws := newService(t)

	result, err := svc.Import(ctx, owner, ws, "", strings.NewReader(roster))
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalImported)
	assert.Empty(t, result.Errors)
	assert.Equal(t, ImportedWorker{Name: "Ada", Role: "Backend", Technologies: 2, Experience: 2}, result.Imported[0])

	workers, err := svc.List(ctx, ws)
	require.NoError(t, err)
	require.Len(t, workers, 3)
	assert.Equal(t, "Ada", workers[0].Name)
	assert.Equal(t, []string{"Go", "Postgres"}, workers[0].Technologies)
	assert.Equal(t, []int{8, 6}, workers[0].Experience)
	assert.Equal(t, DefaultSource, workers[0].Source)
	assert.Equal(t, "Grace", workers[1].Name)
	assert.Empty(t, workers[1].Technologies)
	assert.Equal(t, "Linus", workers[2].Name)
	assert.Equal(t, "Kernel", workers[2].Role)
	assert.Equal(t, []string{"C"}, workers[2].Technologies)

	require.Len(t, events.events, 1)
	assert.Equal(t, activity.TypeWorkersImport, events.events[0].Type)
	assert.Equal(t, ws, events.events[0].WorkspaceID)
}

func TestImport_RowErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _, owner, ws := newService(t)

	_, err := svc.Import(ctx, owner, ws, "team.csv", strings.NewReader("Name,Role,Technologies,Experience\nAda,Backend,Go,5\n"))
	require.NoError(t, err)

	csv := strings.Join([]string{
		"Role,Name,Experience,Technologies",
		"Backend,Ada,5,Go",
		",Nameless,1,Go",
		"QA,Bob,eleven,Go",
		"QA,Carol,11,Go",
		"QA,Dan,-1,Go",
		"Frontend,Eve,3:4,TS:CSS",
		"Frontend,Eve,2,TS",
	}, "\n")
	result, err := svc.Import(ctx, owner, ws, "team.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalImported)
	assert.Equal(t, "Eve", result.Imported[0].Name)
	assert.Equal(t, []string{
		"Line 3: Missing name or role",
		"Line 4: Invalid experience values",
		"Line 5: Invalid experience values",
		"Line 6: Invalid experience values",
		`Line 2: Worker "Ada" already exists`,
		`Line 8: Worker "Eve" already exists`,
	}, result.Errors)
	assert.Equal(t, 6, result.TotalErrors)

	workers, err := svc.List(ctx, ws)
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, "team.csv", workers[1].Source)
}

func TestImport_Rejected(t *testing.T) {
	ctx := context.Background()
	svc, db, events, owner, ws := newService(t)

	tests := []struct {
		name      string
		workspace string
		csv       string
		check     func(error) bool
		msg       string
	}{
		{"empty file", ws, "", apperrors.IsBadRequest, "CSV file is empty"},
		{"missing headers", ws, "Name,Technologies\nAda,Go", apperrors.IsBadRequest, "Missing required headers: Role, Experience"},
		{"unknown workspace", "nope", roster, apperrors.IsNotFound, "Workspace not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Import(ctx, owner, tt.workspace, "", strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	assert.Equal(t, 0, storetest.Count(t, db, "SELECT COUNT(*) FROM workers"))
	assert.Empty(t, events.events)
}

func TestImport_HeaderWithByteOrderMark(t *testing.T) {
	svc, _, _, owner, ws := newService(t)
	result, err := svc.Import(context.Background(), owner, ws, "", strings.NewReader("\ufeffName,Role,Technologies,Experience\nAda,Backend,Go,5"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalImported)
}

func TestList_ScopedToWorkspace(t *testing.T) {
	ctx := context.Background()
	svc, db, _, owner, ws := newService(t)
	other := storetest.Workspace(t, db, owner, "Other")

	_, err := svc.Import(ctx, owner, ws, "", strings.NewReader(roster))
	require.NoError(t, err)
	_, err = svc.Import(ctx, owner, other, "", strings.NewReader("Name,Role,Technologies,Experience\nAda,Design,Figma,7"))
	require.NoError(t, err)

	workers, err := svc.List(ctx, other)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "Design", workers[0].Role)

	empty, err := svc.List(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
