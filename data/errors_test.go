package data //nolint:testpackage // consistent with other test files in package

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type DataErrorsSuite struct {
	suite.Suite
}

func TestDataErrorsSuite(t *testing.T) {
	suite.Run(t, new(DataErrorsSuite))
}

func (s *DataErrorsSuite) TestErrorIsNoRows() {
	s.True(ErrorIsNoRows(gorm.ErrRecordNotFound))
	s.True(ErrorIsNoRows(fmt.Errorf("wrapped: %w", sql.ErrNoRows)))
	s.False(ErrorIsNoRows(errors.New("other")))
	s.False(ErrorIsNoRows(nil))
}

func (s *DataErrorsSuite) TestErrorIsDuplicateKey() {
	s.True(ErrorIsDuplicateKey(gorm.ErrDuplicatedKey))
	s.True(ErrorIsDuplicateKey(&pgconn.PgError{Code: "23505"}))
	s.True(ErrorIsDuplicateKey(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	s.False(ErrorIsDuplicateKey(&pgconn.PgError{Code: "42703"}))
	s.False(ErrorIsDuplicateKey(errors.New("other")))
}

func (s *DataErrorsSuite) TestErrorIsUndefinedColumn() {
	s.True(ErrorIsUndefinedColumn(&pgconn.PgError{Code: "42703"}))
	s.False(ErrorIsUndefinedColumn(&pgconn.PgError{Code: "23505"}))
	s.False(ErrorIsUndefinedColumn(nil))
}
