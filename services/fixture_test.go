package services

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services/storage"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/logger"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type dispatch struct {
	Recipient string
	Kind      model.NotificationKind
	Params    NotificationParams
}

// recordingDispatcher captures notifications instead of sending them
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatch
}

func (r *recordingDispatcher) Notify(_ context.Context, recipient string, kind model.NotificationKind, params NotificationParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, dispatch{Recipient: recipient, Kind: kind, Params: params})
}

func (r *recordingDispatcher) ofKind(kind model.NotificationKind) []dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dispatch
	for _, c := range r.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// fixedClock returns a controllable clock starting at start
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	db           *gorm.DB
	storageRoot  string
	backend      *storage.LocalBackend
	clock        *fixedClock
	dispatcher   *recordingDispatcher
	attachments  *AttachmentService
	institutions *InstitutionService
	programs     *ProgramService
	applicants   *ApplicantService
	accounts     *AccountService
	applications *ApplicationService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, ApplicationOptions{})
}

func newFixtureWith(t *testing.T, opts ApplicationOptions) *fixture {
	t.Helper()

	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	root := t.TempDir()
	backend, err := storage.NewLocalBackend(root)
	require.NoError(t, err)

	log := logger.Discard()
	clock := &fixedClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	opts.Clock = clock.Now

	f := &fixture{
		db:          db,
		storageRoot: root,
		backend:     backend,
		clock:       clock,
		dispatcher:  &recordingDispatcher{},
	}
	f.attachments = NewAttachmentService(backend, AttachmentLimits{}, log)
	f.institutions = NewInstitutionService(db, f.attachments, log)
	f.programs = NewProgramService(db, f.institutions, f.attachments, log)
	f.applicants = NewApplicantService(db, f.institutions, f.attachments, log)
	f.accounts = NewAccountService(db, &auth.BcryptHasher{Cost: bcrypt.MinCost}, f.applicants, f.institutions, f.attachments, log)
	f.applications = NewApplicationService(db, f.institutions, f.attachments, f.dispatcher, log, opts)
	return f
}

func (f *fixture) institution(t *testing.T, name string) *model.Institution {
	t.Helper()
	inst, err := f.institutions.Create(context.Background(), InstitutionInput{Name: name, Location: "Springfield"})
	require.NoError(t, err)
	return inst
}

func (f *fixture) program(t *testing.T, institutionID uint, name string) *model.Program {
	t.Helper()
	p, err := f.programs.Create(context.Background(), institutionID, ProgramInput{Name: name, Degree: "MSc", Duration: "2 years", TuitionFee: 12000})
	require.NoError(t, err)
	return p
}

func (f *fixture) applicant(t *testing.T, first, last, email string) *model.Applicant {
	t.Helper()
	a, err := f.applicants.Create(context.Background(), ApplicantInput{FirstName: first, LastName: last, Email: email})
	require.NoError(t, err)
	return a
}

// storedFiles counts the objects the local backend holds
func (f *fixture) storedFiles(t *testing.T) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(f.storageRoot, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func (f *fixture) reloadInstitution(t *testing.T, id uint) *model.Institution {
	t.Helper()
	inst, err := f.institutions.GetByID(context.Background(), id)
	require.NoError(t, err)
	return inst
}

// interleave runs query just before the first create or update on table,
// inside the same transaction, as a concurrent writer that committed first would.
func (f *fixture) interleave(t *testing.T, op, table, query string, args ...interface{}) {
	t.Helper()

	var once sync.Once
	fn := func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		once.Do(func() {
			require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Exec(query, args...).Error)
		})
	}

	var err error
	switch op {
	case "create":
		err = f.db.Callback().Create().Before("gorm:create").Register("test:interleave_create", fn)
	case "update":
		err = f.db.Callback().Update().Before("gorm:update").Register("test:interleave_update", fn)
	default:
		t.Fatalf("unknown op %q", op)
	}
	require.NoError(t, err)
}
