package sim

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{nil, ClassUnknown},
		{errors.New("boom"), ClassUnknown},
		{newError("open", "AAPL", ReasonMarketDataUnavailable, ErrMarketDataUnavailable, ""), ClassRetry},
		{fmt.Errorf("wrapped: %w", ErrPersistence), ClassRetry},
		{newError("open", "AAPL", "max_positions", ErrRiskLimitExceeded, "max positions reached"), ClassPolicy},
		{newError("open", "AAPL", ReasonInsufficientFunds, ErrInsufficientFunds, ""), ClassNever},
		{ErrShutdown, ClassNever},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := newError("open", "AAPL", "max_positions", ErrRiskLimitExceeded, "max positions reached")
	assert.Equal(t, "open AAPL: risk limit exceeded: max positions reached", err.Error())
	assert.Equal(t, "max_positions", ReasonOf(fmt.Errorf("ctx: %w", err)))
	assert.Empty(t, ReasonOf(errors.New("x")))

	err = newError("close", "MSFT", ReasonPositionNotFound, ErrPositionNotFound, "")
	assert.Equal(t, "close MSFT: position not found", err.Error())
}
