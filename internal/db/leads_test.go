package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertLeadAssignsDefaults(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	lead := &Lead{Source: "search"}
	require.NoError(t, client.InsertLead(context.Background(), lead))
	assert.NotEqual(t, uuid.Nil, lead.ID)
	assert.Equal(t, LeadStatusNew, lead.Status)
}

func TestFindActiveLeadByFingerprintMiss(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT \* FROM leads`).
		WithArgs("abc123", LeadStatusLost).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	lead, err := client.FindActiveLeadByFingerprint(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Nil(t, lead)
}

func TestFindActiveLeadByFingerprintHit(t *testing.T) {
	client, mock := newMockClient(t)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "source", "status", "fingerprint"}).
		AddRow(id, "search", LeadStatusNew, "abc123")
	mock.ExpectQuery(`SELECT \* FROM leads`).
		WithArgs("abc123", LeadStatusLost).
		WillReturnRows(rows)

	lead, err := client.FindActiveLeadByFingerprint(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, id, lead.ID)
}

func TestGetLeadMissing(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT \* FROM leads WHERE id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	lead, err := client.GetLead(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, lead)
}

func TestSearchMemoriesDefaultLimit(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT \* FROM memories`).
		WithArgs("salon", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content"}).
			AddRow(uuid.New(), "client prefers DMs over comments"))

	got, err := client.SearchMemories(context.Background(), "salon", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "DMs")
}
