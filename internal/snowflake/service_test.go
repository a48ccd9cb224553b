package snowflake

import (
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowcraft/pkg/errors"
	"snowcraft/pkg/models"
)

func testConfig() models.Connection {
	return models.Connection{
		Name:      "test",
		Account:   "test123.us-east-1",
		Username:  "testuser",
		Password:  "testpass",
		Database:  "TEST_DB",
		Schema:    "PUBLIC",
		Warehouse: "TEST_WH",
		Role:      "SYSADMIN",
		Timeout:   "30s",
	}
}

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service := NewService(testConfig())
	service.db = db
	service.connected = true
	return service, mock
}

func TestNewService(t *testing.T) {
	service := NewService(testConfig())
	assert.NotNil(t, service)
	assert.False(t, service.connected)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.Connection)
		wantError bool
	}{
		{name: "valid config", mutate: func(c *models.Connection) {}},
		{name: "missing account", mutate: func(c *models.Connection) { c.Account = "" }, wantError: true},
		{name: "missing username", mutate: func(c *models.Connection) { c.Username = "" }, wantError: true},
		{name: "missing password", mutate: func(c *models.Connection) { c.Password = "" }, wantError: true},
		{name: "missing warehouse", mutate: func(c *models.Connection) { c.Warehouse = "" }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			tt.mutate(&config)
			err := ValidateConfig(config)
			if tt.wantError {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExecuteBatch(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("USE DATABASE TEST_DB").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("USE SCHEMA PUBLIC").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE COMPUTE POOL").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE SERVICE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := service.ExecuteBatch([]string{
		"CREATE COMPUTE POOL IF NOT EXISTS my_pool",
		"",
		"CREATE SERVICE IF NOT EXISTS my_svc",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteBatchRollsBackOnFailure(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("USE DATABASE TEST_DB").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("USE SCHEMA PUBLIC").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE COMPUTE POOL").WillReturnError(fmt.Errorf("object does not exist"))
	mock.ExpectRollback()

	err := service.ExecuteBatch([]string{"CREATE COMPUTE POOL IF NOT EXISTS my_pool"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSQLObjectNotFound, errors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteBatchNotConnected(t *testing.T) {
	service := NewService(testConfig())
	err := service.ExecuteBatch([]string{"SELECT 1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConnectionFailed, errors.GetErrorCode(err))
}

func TestExecuteScriptSplitsStatements(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("USE DATABASE TEST_DB").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("USE SCHEMA PUBLIC").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE t1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE t2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := service.ExecuteScript("CREATE TABLE t1 (id INT); CREATE TABLE t2 (id INT);")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadFiles(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectExec("PUT file://").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("PUT file://").WillReturnResult(sqlmock.NewResult(0, 0))

	err := service.UploadFiles("my_pkg.stage_content.app_src", []string{
		"build/main.py",
		"build/manifest.yml",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose(t *testing.T) {
	service, mock := newMockService(t)
	mock.ExpectClose()

	require.NoError(t, service.Close())
	assert.False(t, service.connected)
	assert.NoError(t, service.Close())
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "single statement", input: "SELECT 1", want: 1},
		{name: "two statements", input: "SELECT 1; SELECT 2", want: 2},
		{name: "trailing semicolon", input: "SELECT 1;", want: 1},
		{name: "semicolon in string", input: "SELECT 'a;b'; SELECT 2", want: 2},
		{name: "semicolon in double quotes", input: `SELECT "a;b"; SELECT 2`, want: 2},
		{name: "semicolon in line comment", input: "SELECT 1 -- not a boundary ;\n; SELECT 2", want: 2},
		{name: "comment only statement", input: "-- setup; notes\nSELECT 1", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStatements(tt.input)
			var nonEmpty int
			for _, s := range got {
				if strings.TrimSpace(s) != "" {
					nonEmpty++
				}
			}
			assert.Equal(t, tt.want, nonEmpty)
		})
	}
}
