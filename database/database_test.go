package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("create: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestMigrate_SQLiteUniqueIndexes(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	first := model.Account{Username: "tester", Email: "t@example.com", PasswordHash: "x", Role: model.RoleAdmin, Active: true}
	require.NoError(t, db.Create(&first).Error)

	dup := model.Account{Username: "tester", Email: "other@example.com", PasswordHash: "x", Role: model.RoleAdmin, Active: true}
	err = db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
	assert.True(t, IsForeignKeyViolation(fmt.Errorf("insert: %w", gorm.ErrForeignKeyViolated)))
	assert.False(t, IsForeignKeyViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(nil))
}

func TestMigrate_SQLiteRejectsOrphanApplication(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	err = db.Create(&model.Application{ApplicantID: 999, ProgramID: 999, InstitutionID: 999, Status: model.StatusPending}).Error
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))

	err = db.Create(&model.Program{InstitutionID: 999, Name: "Data Science", TuitionFee: 1000}).Error
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))

	var count int64
	require.NoError(t, db.Model(&model.Application{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMigrate_SQLiteCascadesFromProgram(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	inst := model.Institution{Name: "Example College", Location: "Springfield"}
	require.NoError(t, db.Create(&inst).Error)
	program := model.Program{InstitutionID: inst.ID, Name: "Data Science", TuitionFee: 1000}
	require.NoError(t, db.Create(&program).Error)
	applicant := model.Applicant{FirstName: "A.", LastName: "Tester", Email: "a.tester@example.com"}
	require.NoError(t, db.Create(&applicant).Error)
	app := model.Application{ApplicantID: applicant.ID, ProgramID: program.ID, InstitutionID: inst.ID, Status: model.StatusPending}
	require.NoError(t, db.Create(&app).Error)

	require.NoError(t, db.Delete(&model.Program{}, program.ID).Error)

	var count int64
	require.NoError(t, db.Model(&model.Application{}).Where("program_id = ?", program.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSeeder_SeedAllIsIdempotent(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	seeder := NewSeeder(db, &auth.BcryptHasher{Cost: bcrypt.MinCost}, logger.Discard())
	admin := AdminCredentials{Username: "root", Email: "root@example.com", Password: "secret123"}

	require.NoError(t, seeder.SeedAll(admin))
	require.NoError(t, seeder.SeedAll(admin))

	var admins []model.Account
	require.NoError(t, db.Where("role = ?", model.RoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "root", admins[0].Username)
	assert.NotEqual(t, "secret123", admins[0].PasswordHash)

	var institutions []model.Institution
	require.NoError(t, db.Order("id ASC").Find(&institutions).Error)
	require.Len(t, institutions, len(sampleInstitutions()))

	for _, inst := range institutions {
		var programs int64
		require.NoError(t, db.Model(&model.Program{}).Where("institution_id = ?", inst.ID).Count(&programs).Error)
		assert.Equal(t, int64(inst.ProgramCount), programs, inst.Name)
	}
}

func TestSeeder_SkipsAdminWithoutCredentials(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, NewSeeder(db, auth.NewBcryptHasher(), logger.Discard()).SeedAdminAccount(AdminCredentials{}))

	var count int64
	require.NoError(t, db.Model(&model.Account{}).Count(&count).Error)
	assert.Zero(t, count)
}
