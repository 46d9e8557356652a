package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCode(t *testing.T) {
	base := ConfigInvalid("cross_validation_folds must be at least 2")
	wrapped := Wrap(base, "engine options rejected")

	assert.Equal(t, CodeConfigInvalid, GetCode(wrapped))
	assert.True(t, IsConfigInvalid(wrapped))
	assert.Contains(t, wrapped.Error(), "engine options rejected")
	assert.Contains(t, wrapped.Error(), "cross_validation_folds")
}

func TestWrap_PlainErrorBecomesInternal(t *testing.T) {
	err := Wrap(stderrors.New("boom"), "reading dataset")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestGetCode_ThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("load: %w", InvalidInput("outcome column missing"))
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.True(t, IsAppError(err))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeInsufficientData, stderrors.New("only 12 rows"))
	assert.True(t, HasCode(err, CodeInsufficientData))
	assert.Equal(t, "only 12 rows", err.Error())
}

func TestWithCode_KeepsOuterContext(t *testing.T) {
	inner := NotFound("run 42")
	err := WithCode(CodeInvalidInput, fmt.Errorf("read data.csv: %w", inner))

	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.Equal(t, "read data.csv: run 42 not found", err.Error())
	assert.True(t, stderrors.Is(err, inner))
}

func TestWithCode_RecodesAppError(t *testing.T) {
	err := WithCode(CodeConfigInvalid, Wrapf(stderrors.New("bad kind"), "feature %q", "age"))

	assert.True(t, IsConfigInvalid(err))
	assert.Equal(t, `feature "age": bad kind`, err.Error())
	assert.Nil(t, WithCode(CodeNotFound, nil))
}
