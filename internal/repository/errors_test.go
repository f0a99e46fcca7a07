package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapWriteError(t *testing.T) {
	unique := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, mapWriteError(unique), ErrDuplicate)

	fk := &pgconn.PgError{Code: "23503"}
	assert.Equal(t, error(fk), mapWriteError(fk))

	other := errors.New("connection reset")
	assert.Equal(t, other, mapWriteError(other))
	assert.NoError(t, mapWriteError(nil))
}
