package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPingMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single url", input: "postgres://r1/crm", expected: []string{"postgres://r1/crm"}},
		{
			name:     "trims whitespace",
			input:    " postgres://r1/crm , postgres://r2/crm ",
			expected: []string{"postgres://r1/crm", "postgres://r2/crm"},
		},
		{name: "skips empty entries", input: "postgres://r1/crm,,", expected: []string{"postgres://r1/crm"}},
		{name: "only separators", input: " , ,", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestNewConnectionManager_UnreachablePrimary(t *testing.T) {
	cm, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL: "postgres://nonexistent:9999/crm?connect_timeout=1",
		MaxConns:   4,
		MinConns:   1,
		Timeout:    2 * time.Second,
	})
	require.Error(t, err)
	assert.Nil(t, cm)
	assert.Contains(t, err.Error(), "failed to ping primary")
}

func TestConnectionManager_Replica(t *testing.T) {
	t.Run("falls back to primary", func(t *testing.T) {
		primary := &sql.DB{}
		cm := NewConnectionManagerFromDB(primary)
		assert.Same(t, primary, cm.Replica())
		assert.Same(t, primary, cm.Primary())
	})

	t.Run("round robin", func(t *testing.T) {
		r1, r2 := &sql.DB{}, &sql.DB{}
		cm := NewConnectionManagerFromDB(&sql.DB{}, r1, r2)

		seen := map[*sql.DB]int{}
		for i := 0; i < 10; i++ {
			seen[cm.Replica()]++
		}
		assert.Equal(t, 5, seen[r1])
		assert.Equal(t, 5, seen[r2])
	})

	t.Run("skips replicas that are down", func(t *testing.T) {
		primary := &sql.DB{}
		r1, r2 := &sql.DB{}, &sql.DB{}
		cm := NewConnectionManagerFromDB(primary, r1, r2)
		cm.replicas[0].up.Store(false)

		for i := 0; i < 4; i++ {
			assert.Same(t, r2, cm.Replica())
		}

		cm.replicas[1].up.Store(false)
		assert.Same(t, primary, cm.Replica())
		assert.Equal(t, 0, cm.UpReplicas())
	})
}

func TestConnectionManager_ProbeReplicas(t *testing.T) {
	r1, m1 := newPingMock(t)
	r2, m2 := newPingMock(t)
	m1.ExpectPing()
	m2.ExpectPing().WillReturnError(errors.New("connection lost"))
	m1.ExpectPing()
	m2.ExpectPing()

	cm := NewConnectionManagerFromDB(&sql.DB{}, r1, r2)

	assert.Equal(t, []string{"replica-1"}, cm.ProbeReplicas(context.Background()))
	assert.Equal(t, 1, cm.UpReplicas())
	assert.Same(t, r1, cm.Replica())

	assert.Empty(t, cm.ProbeReplicas(context.Background()))
	assert.Equal(t, 2, cm.UpReplicas())
	assert.NoError(t, m1.ExpectationsWereMet())
	assert.NoError(t, m2.ExpectationsWereMet())
}

func TestConnectionManager_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		primary, pm := newPingMock(t)
		replica, rm := newPingMock(t)
		pm.ExpectPing()
		rm.ExpectPing()

		cm := NewConnectionManagerFromDB(primary, replica)
		require.NoError(t, cm.HealthCheck(context.Background()))
		assert.NoError(t, pm.ExpectationsWereMet())
		assert.NoError(t, rm.ExpectationsWereMet())
	})

	t.Run("unhealthy primary", func(t *testing.T) {
		primary, pm := newPingMock(t)
		pm.ExpectPing().WillReturnError(errors.New("connection refused"))

		err := NewConnectionManagerFromDB(primary).HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary unhealthy")
	})

	t.Run("replicas down fall back to primary", func(t *testing.T) {
		primary, pm := newPingMock(t)
		r1, m1 := newPingMock(t)
		pm.ExpectPing()
		m1.ExpectPing().WillReturnError(errors.New("connection refused"))

		cm := NewConnectionManagerFromDB(primary, r1)
		assert.NoError(t, cm.HealthCheck(context.Background()))
		assert.Same(t, primary, cm.Replica())
	})
}

func TestConnectionManager_Close(t *testing.T) {
	primary, pm := newPingMock(t)
	replica, rm := newPingMock(t)
	pm.ExpectClose()
	rm.ExpectClose().WillReturnError(errors.New("close failed"))

	cm := NewConnectionManagerFromDB(primary, replica)
	err := cm.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replica-0 close error")
	assert.Equal(t, 0, cm.UpReplicas())
}

func TestConnectionManager_StartHealthCheckRoutine(t *testing.T) {
	r1, m1 := newPingMock(t)
	m1.ExpectPing().WillReturnError(errors.New("connection lost"))

	cm := NewConnectionManagerFromDB(&sql.DB{}, r1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cm.StartHealthCheckRoutine(ctx, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		return cm.UpReplicas() == 0
	}, time.Second, 10*time.Millisecond)
}
