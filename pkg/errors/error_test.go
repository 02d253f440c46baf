package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeBarNotFound, "no bar for %s", "AAPL")
	suite.NotNil(err)
	suite.Equal(ErrCodeBarNotFound, err.Code)
	suite.Equal("no bar for AAPL", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeFeedQueryFailed, "failed to query bars", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeFeedQueryFailed, err.Code)
	suite.Equal("failed to query bars", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeFeedQueryFailed, cause, "failed to query bars for %s", "AAPL")
	suite.NotNil(err)
	suite.Equal("failed to query bars for AAPL", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[101] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeEmptyPriceFeed, "price feed contains no bars", cause)
	suite.Equal("[201] price feed contains no bars: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeLedgerWriteFailed, "failed to record trade", cause)
	suite.Equal(cause, errors.Unwrap(err))
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeEmptyScoreFeed, "score feed contains no candidates")
	suite.Equal(ErrCodeEmptyScoreFeed, GetCode(err))

	wrapped := fmt.Errorf("outer: %w", err)
	suite.Equal(ErrCodeEmptyScoreFeed, GetCode(wrapped))

	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain error")))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeSimulationPreCheck, "no price feed set")
	suite.True(HasCode(err, ErrCodeSimulationPreCheck))
	suite.False(HasCode(err, ErrCodeSimulationAborted))
}
