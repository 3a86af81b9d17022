package dberrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{&ValidationError{Path: "age", Reason: "not a number"}, 2},
		{&UniqueConstraintError{Field: "email", Value: "a@x"}, 3},
		{&CompoundUniqueError{GroupName: "g"}, 3},
		{&ForeignKeyError{ChildTable: "posts", ChildField: "authorId"}, 4},
		{&Corruption{Where: "header", Detail: "bad magic"}, 5},
		{&LockTimeout{Path: "db.wal"}, 6},
		{&IoError{Op: "read", Cause: errors.New("boom")}, 7},
		{errors.New("anything else"), 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, ExitCode(tc.err))
	}
}

func TestIoErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("writing doc: %w", &IoError{Op: "write", Cause: cause})
	assert.ErrorIs(t, err, cause)
}

func TestUniqueConstraintMessage(t *testing.T) {
	err := &UniqueConstraintError{Field: "email", Value: "a@x"}
	assert.Contains(t, err.Error(), "email")
	assert.Contains(t, err.Error(), "a@x")
}
