package bus

import (
	"context"
	"errors"
	"testing"

	pkgerrors "canvashistory/pkg/errors"
	"canvashistory/pkg/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingCommand struct {
	Name string
}

func (c *pingCommand) Validate() error {
	if c.Name == "" {
		return pkgerrors.NewValidationError("name is required")
	}
	return nil
}

type otherCommand struct{}

func (otherCommand) Validate() error { return nil }

func TestCommandBus_Dispatch(t *testing.T) {
	b := NewCommandBus()
	require.NoError(t, b.Register(&pingCommand{}, CommandHandlerFunc(func(_ context.Context, cmd Command) (interface{}, error) {
		return "pong " + cmd.(*pingCommand).Name, nil
	})))

	result, err := b.Send(context.Background(), &pingCommand{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "pong a", result)
}

func TestCommandBus_Errors(t *testing.T) {
	b := NewCommandBus()
	h := CommandHandlerFunc(func(context.Context, Command) (interface{}, error) { return nil, nil })
	require.NoError(t, b.Register(&pingCommand{}, h))
	assert.Error(t, b.Register(&pingCommand{}, h))

	_, err := b.Send(context.Background(), &pingCommand{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = b.Send(context.Background(), otherCommand{})
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInternal))
}

func TestCommandBus_Middleware(t *testing.T) {
	metrics := observability.NewCollector("test")
	var order []string
	trace := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}

	b := NewCommandBus(trace("outer"), LoggingMiddleware(zap.NewNop()), MetricsMiddleware(metrics), trace("inner"))
	require.NoError(t, b.Register(&pingCommand{}, CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
		return nil, errors.New("boom")
	})))

	_, err := b.Send(context.Background(), &pingCommand{Name: "x"})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Commands.WithLabelValues("pingCommand", "error")))
}
