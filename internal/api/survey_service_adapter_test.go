package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/adi/internal/models"
	"github.com/soaringjerry/adi/internal/services"
)

func TestSurveyAdapterTranslatesDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	a := newSurveyStoreAdapter(store)
	set := []*services.Response{{
		ID: "r1", SurveyID: "s1", UserID: "u1", SubmissionID: "sub1",
		Answer: "Yes", ResponseYear: 2024, CreatedAt: time.Now().UTC(),
	}}

	require.NoError(t, a.AddResponses(ctx, set))
	set[0].ID, set[0].SubmissionID = "r2", "sub2"
	err := a.AddResponses(ctx, set)
	assert.ErrorIs(t, err, services.ErrDuplicateSubmission)
	assert.NotErrorIs(t, err, models.ErrDuplicateSubmission)
}
