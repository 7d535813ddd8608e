package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplicationStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to ApplicationStatus
		allowed  bool
	}{
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusWithdrawn, true},
		{StatusUnderReview, StatusWaitlisted, true},
		{StatusUnderReview, StatusPending, false},
		{StatusWaitlisted, StatusAccepted, true},
		{StatusWaitlisted, StatusUnderReview, false},
		{StatusUnderReview, StatusUnderReview, true},
		{StatusAccepted, StatusAccepted, false},
		{StatusAccepted, StatusWithdrawn, false},
		{StatusRejected, StatusPending, false},
		{StatusWithdrawn, StatusUnderReview, false},
		{StatusPending, ApplicationStatus("ARCHIVED"), false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestApplicationStatus_Terminal(t *testing.T) {
	assert.True(t, StatusAccepted.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusWithdrawn.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusUnderReview.Terminal())
	assert.False(t, StatusWaitlisted.Terminal())
}

func TestClampAcceptanceRate(t *testing.T) {
	assert.Equal(t, 0.0, ClampAcceptanceRate(-4))
	assert.Equal(t, 100.0, ClampAcceptanceRate(140))
	assert.Equal(t, 37.5, ClampAcceptanceRate(37.5))
}

func TestApplicationToView_FlattensRefs(t *testing.T) {
	app := &Application{ID: 7, ApplicantID: 1, ProgramID: 2, InstitutionID: 3, Status: StatusPending}
	view := app.ToView(
		&Applicant{ID: 1, FirstName: "A.", LastName: "Tester", Email: "a@example.com"},
		&Program{ID: 2, Name: "Data Science"},
		nil,
	)

	assert.Equal(t, ViewVersion, view.Version)
	assert.Equal(t, "A. Tester", view.Applicant.Name)
	assert.Equal(t, "a@example.com", view.ApplicantEmail)
	assert.Equal(t, "Data Science", view.Program.Name)
	assert.Equal(t, uint(3), view.Institution.ID)
	assert.Empty(t, view.Institution.Name)
}
