package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forma-labs/corsi-admin-api/internal/models"
	appErrors "github.com/forma-labs/corsi-admin-api/pkg/errors"
)

type mockParticipantRepo struct {
	details  map[string]*models.ParticipantDetail
	taxCodes map[string]string
	created  *models.Participant
	updated  *models.Participant
	deleted  []string
}

func newMockParticipantRepo() *mockParticipantRepo {
	return &mockParticipantRepo{
		details:  make(map[string]*models.ParticipantDetail),
		taxCodes: make(map[string]string),
	}
}

func (m *mockParticipantRepo) List(ctx context.Context, filter models.ParticipantFilter) ([]models.ParticipantDetail, int, error) {
	var out []models.ParticipantDetail
	for _, d := range m.details {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *mockParticipantRepo) FindByID(ctx context.Context, id string) (*models.ParticipantDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockParticipantRepo) ExistsByTaxCode(ctx context.Context, taxCode string, excludeID string) (bool, error) {
	owner, ok := m.taxCodes[taxCode]
	if !ok {
		return false, nil
	}
	if excludeID != "" && owner == excludeID {
		return false, nil
	}
	return true, nil
}

func (m *mockParticipantRepo) Create(ctx context.Context, participant *models.Participant) error {
	participant.ID = "participant-new"
	m.created = participant
	return nil
}

func (m *mockParticipantRepo) Update(ctx context.Context, participant *models.Participant) error {
	m.updated = participant
	return nil
}

func (m *mockParticipantRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func TestParticipantCreate(t *testing.T) {
	repo := newMockParticipantRepo()
	svc := NewParticipantService(repo, nil, nil)

	participant, err := svc.Create(context.Background(), ParticipantRequest{
		FirstName: "Mario",
		LastName:  "Rossi",
		TaxCode:   "RSSMRA85C15H501X",
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "participant-new", participant.ID)
	assert.Equal(t, "admin-1", participant.CreatedBy)
}

func TestParticipantCreateDuplicateTaxCodeConflicts(t *testing.T) {
	repo := newMockParticipantRepo()
	repo.taxCodes["RSSMRA85C15H501X"] = "participant-1"
	svc := NewParticipantService(repo, nil, nil)

	_, err := svc.Create(context.Background(), ParticipantRequest{
		FirstName: "Mario",
		LastName:  "Rossi",
		TaxCode:   "RSSMRA85C15H501X",
	}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestParticipantCreateEmptyTaxCodeAllowed(t *testing.T) {
	repo := newMockParticipantRepo()
	svc := NewParticipantService(repo, nil, nil)

	// Multiple participants without a tax code may coexist.
	_, err := svc.Create(context.Background(), ParticipantRequest{FirstName: "Mario", LastName: "Rossi"}, "admin-1")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), ParticipantRequest{FirstName: "Luca", LastName: "Bianchi"}, "admin-1")
	require.NoError(t, err)
}

func TestParticipantCreateRequiresNames(t *testing.T) {
	svc := NewParticipantService(newMockParticipantRepo(), nil, nil)

	_, err := svc.Create(context.Background(), ParticipantRequest{FirstName: "Mario"}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestParticipantUpdateKeepsOwnTaxCode(t *testing.T) {
	repo := newMockParticipantRepo()
	repo.details["participant-1"] = &models.ParticipantDetail{
		Participant: models.Participant{ID: "participant-1", FirstName: "Mario", LastName: "Rossi", CreatedBy: "admin-1"},
	}
	repo.taxCodes["RSSMRA85C15H501X"] = "participant-1"
	svc := NewParticipantService(repo, nil, nil)

	participant, err := svc.Update(context.Background(), "participant-1", ParticipantRequest{
		FirstName: "Mario",
		LastName:  "Rossi",
		TaxCode:   "RSSMRA85C15H501X",
		Mobile:    "3331234567",
	})
	require.NoError(t, err)
	assert.Equal(t, "3331234567", participant.Mobile)
	assert.Equal(t, "admin-1", participant.CreatedBy, "creator attribution survives updates")
}

func TestParticipantUpdateForeignTaxCodeConflicts(t *testing.T) {
	repo := newMockParticipantRepo()
	repo.details["participant-1"] = &models.ParticipantDetail{
		Participant: models.Participant{ID: "participant-1"},
	}
	repo.taxCodes["RSSMRA85C15H501X"] = "participant-2"
	svc := NewParticipantService(repo, nil, nil)

	_, err := svc.Update(context.Background(), "participant-1", ParticipantRequest{
		FirstName: "Mario",
		LastName:  "Rossi",
		TaxCode:   "RSSMRA85C15H501X",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestParticipantDeleteMissingNotFound(t *testing.T) {
	svc := NewParticipantService(newMockParticipantRepo(), nil, nil)

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestParticipantDelete(t *testing.T) {
	repo := newMockParticipantRepo()
	repo.details["participant-1"] = &models.ParticipantDetail{
		Participant: models.Participant{ID: "participant-1"},
	}
	svc := NewParticipantService(repo, nil, nil)

	err := svc.Delete(context.Background(), "participant-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"participant-1"}, repo.deleted)
}
