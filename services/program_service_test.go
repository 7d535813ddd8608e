package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramService_CreateRequiresInstitution(t *testing.T) {
	f := newFixture(t)

	_, err := f.programs.Create(context.Background(), 999, ProgramInput{Name: "Data Science", TuitionFee: 1000})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	count, err := f.programs.CountAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProgramService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	inst := f.institution(t, "Example College")

	_, err := f.programs.Create(context.Background(), inst.ID, ProgramInput{Name: "  ", TuitionFee: 0})
	require.Error(t, err)
	fields := apperrors.FieldsOf(err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "tuition_fee")
	assert.Equal(t, 0, f.reloadInstitution(t, inst.ID).ProgramCount)
}

func TestProgramService_UpdateAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.institution(t, "Example College")
	ds := f.program(t, inst.ID, "Data Science")
	f.program(t, inst.ID, "History")

	degree := "PhD"
	fee := 15000.0
	updated, err := f.programs.Update(ctx, ds.ID, UpdateProgramInput{Degree: &degree, TuitionFee: &fee})
	require.NoError(t, err)
	assert.Equal(t, "PhD", updated.Degree)
	assert.Equal(t, 15000.0, updated.TuitionFee)
	assert.Equal(t, inst.ID, updated.InstitutionID)

	zero := 0.0
	_, err = f.programs.Update(ctx, ds.ID, UpdateProgramInput{TuitionFee: &zero})
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))

	found, err := f.programs.Search(ctx, "phd")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ds.ID, found[0].ID)

	listed, err := f.programs.ListByInstitution(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Data Science", listed[0].Name)

	_, err = f.programs.Update(ctx, 999, UpdateProgramInput{Degree: &degree})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestProgramService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.institution(t, "Example College")
	ds := f.program(t, inst.ID, "Data Science")
	history := f.program(t, inst.ID, "History")
	applicant := f.applicant(t, "A.", "Tester", "a.tester@example.com")

	app, err := f.applications.Submit(ctx, applicant.ID, ds.ID, "")
	require.NoError(t, err)
	kept, err := f.applications.Submit(ctx, applicant.ID, history.ID, "")
	require.NoError(t, err)
	app, err = f.applications.AttachDocument(ctx, app.ID, AttachmentPayload{Filename: "cv.txt", ContentType: "text/plain", Data: []byte("cv")})
	require.NoError(t, err)

	require.NoError(t, f.programs.Delete(ctx, ds.ID))

	_, err = f.applications.GetByID(ctx, app.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	_, err = f.attachments.Retrieve(ctx, app.DocumentPath)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	_, err = f.applications.GetByID(ctx, kept.ID)
	assert.NoError(t, err)

	reloaded := f.reloadInstitution(t, inst.ID)
	assert.Equal(t, 1, reloaded.ProgramCount)
	assert.Equal(t, 1, reloaded.ApplicationCount)

	assert.True(t, errors.Is(f.programs.Delete(ctx, ds.ID), apperrors.ErrNotFound))
}

func TestProgramService_DeleteRacesApplicantDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst := f.institution(t, "Example College")
	ds := f.program(t, inst.ID, "Data Science")
	history := f.program(t, inst.ID, "History")
	first := f.applicant(t, "A.", "Tester", "a.tester@example.com")
	second := f.applicant(t, "B.", "Tester", "b.tester@example.com")

	// first's Data Science application is reachable from both parents
	for _, pair := range []struct{ applicant, program uint }{
		{first.ID, ds.ID}, {first.ID, history.ID}, {second.ID, ds.ID},
	} {
		_, err := f.applications.Submit(ctx, pair.applicant, pair.program, "")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = f.applicants.Delete(ctx, first.ID)
	}()
	go func() {
		defer wg.Done()
		errs[1] = f.programs.Delete(ctx, ds.ID)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	var remaining int64
	require.NoError(t, f.db.Model(&model.Application{}).Count(&remaining).Error)
	assert.Zero(t, remaining)

	reloaded := f.reloadInstitution(t, inst.ID)
	assert.Equal(t, 1, reloaded.ProgramCount)
	assert.Equal(t, 0, reloaded.ApplicationCount)

	assert.True(t, errors.Is(f.applicants.Delete(ctx, first.ID), apperrors.ErrNotFound))
	assert.True(t, errors.Is(f.programs.Delete(ctx, ds.ID), apperrors.ErrNotFound))
}
