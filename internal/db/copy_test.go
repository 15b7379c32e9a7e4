package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "zones", []string{"run_id", "storm_id"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zones"}, []string{"run_id", "storm_id", "threshold_kt"}).WillReturnResult(3)

	rows := [][]any{
		{"run-1", "AL092025", 34},
		{"run-1", "AL092025", 50},
		{"run-1", "AL092025", 64},
	}
	n, err := CopyFrom(context.Background(), mock, "zones", []string{"run_id", "storm_id", "threshold_kt"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zones"}, []string{"run_id", "storm_id"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"run-1", "AL092025"}}
	_, err = CopyFrom(context.Background(), mock, "zones", []string{"run_id", "storm_id"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO zones")
	assert.NoError(t, mock.ExpectationsWereMet())
}
