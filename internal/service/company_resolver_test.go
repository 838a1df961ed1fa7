package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forma-labs/corsi-admin-api/internal/models"
)

type mockResolverCompanyRepo struct {
	byName      map[string]*models.Company
	insertWins  bool
	findErr     error
	createErr   error
	findCalls   int
	createCalls int
}

func (m *mockResolverCompanyRepo) FindByName(ctx context.Context, name string) (*models.Company, error) {
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	if c, ok := m.byName[name]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResolverCompanyRepo) Create(ctx context.Context, company *models.Company) (bool, error) {
	m.createCalls++
	if m.createErr != nil {
		return false, m.createErr
	}
	if !m.insertWins {
		return false, nil
	}
	company.ID = "company-new"
	if m.byName == nil {
		m.byName = make(map[string]*models.Company)
	}
	m.byName[company.Name] = company
	return true, nil
}

func TestResolveEmptyNameIsNoAssociation(t *testing.T) {
	repo := &mockResolverCompanyRepo{}
	resolver := NewCompanyResolver(repo, nil)

	id, created, err := resolver.Resolve(context.Background(), models.CompanyDraft{Name: "   "})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.False(t, created)
	assert.Zero(t, repo.findCalls)
}

func TestResolveExistingCompanyWins(t *testing.T) {
	repo := &mockResolverCompanyRepo{byName: map[string]*models.Company{
		"Acme Srl": {ID: "company-1", Name: "Acme Srl", VATNumber: "stored"},
	}}
	resolver := NewCompanyResolver(repo, nil)

	id, created, err := resolver.Resolve(context.Background(), models.CompanyDraft{
		Name:      "Acme Srl",
		VATNumber: "from-row",
	})
	require.NoError(t, err)
	assert.Equal(t, "company-1", id)
	assert.False(t, created)
	assert.Zero(t, repo.createCalls, "existing company must not be rewritten from row data")
}

func TestResolveCreatesMissingCompany(t *testing.T) {
	repo := &mockResolverCompanyRepo{insertWins: true}
	resolver := NewCompanyResolver(repo, nil)

	id, created, err := resolver.Resolve(context.Background(), models.CompanyDraft{Name: "Acme Srl", VATNumber: "01234567890"})
	require.NoError(t, err)
	assert.Equal(t, "company-new", id)
	assert.True(t, created)
	require.Contains(t, repo.byName, "Acme Srl")
	assert.Equal(t, "01234567890", repo.byName["Acme Srl"].VATNumber)
}

func TestResolveTrimsNameBeforeLookup(t *testing.T) {
	repo := &mockResolverCompanyRepo{byName: map[string]*models.Company{
		"Acme Srl": {ID: "company-1", Name: "Acme Srl"},
	}}
	resolver := NewCompanyResolver(repo, nil)

	id, created, err := resolver.Resolve(context.Background(), models.CompanyDraft{Name: "  Acme Srl  "})
	require.NoError(t, err)
	assert.Equal(t, "company-1", id)
	assert.False(t, created)
}

func TestResolveLostInsertRaceReloadsWinner(t *testing.T) {
	// Create reports no row inserted (a concurrent import won the unique
	// name constraint); the resolver must read back the winner. The first
	// lookup misses, the post-insert lookup finds the winner.
	repo := &mockResolverCompanyRepo{insertWins: false}
	first := true
	repoWithRace := &racingCompanyRepo{
		inner:     repo,
		winner:    &models.Company{ID: "company-winner", Name: "Acme Srl"},
		firstMiss: &first,
	}
	resolver := NewCompanyResolver(repoWithRace, nil)

	id, created, err := resolver.Resolve(context.Background(), models.CompanyDraft{Name: "Acme Srl"})
	require.NoError(t, err)
	assert.Equal(t, "company-winner", id)
	assert.False(t, created)
	assert.Equal(t, 1, repo.createCalls)
}

type racingCompanyRepo struct {
	inner     *mockResolverCompanyRepo
	winner    *models.Company
	firstMiss *bool
}

func (r *racingCompanyRepo) FindByName(ctx context.Context, name string) (*models.Company, error) {
	if *r.firstMiss {
		*r.firstMiss = false
		return nil, sql.ErrNoRows
	}
	return r.winner, nil
}

func (r *racingCompanyRepo) Create(ctx context.Context, company *models.Company) (bool, error) {
	return r.inner.Create(ctx, company)
}

func TestResolveLookupFailurePropagates(t *testing.T) {
	repo := &mockResolverCompanyRepo{findErr: errors.New("connection reset")}
	resolver := NewCompanyResolver(repo, nil)

	_, _, err := resolver.Resolve(context.Background(), models.CompanyDraft{Name: "Acme Srl"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `lookup company "Acme Srl"`)
}
