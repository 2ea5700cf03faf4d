package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/hupe1980/agentloop/model"
)

func fast(o *Options) {
	o.InitialInterval = time.Millisecond
	o.MaxInterval = time.Millisecond
	o.RandomizationFactor = 0
}

func TestRetry_RecoversFromTransientErrors(t *testing.T) {
	inner := testutil.NewScriptedModel(
		testutil.Fail(errors.New("503")),
		testutil.Fail(errors.New("503")),
		testutil.Reply("ok"),
	)
	m := New(inner, fast)

	resp, err := model.Collect(context.Background(), m, model.Request{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, 3, inner.Calls())
	assert.Equal(t, inner.Info(), m.Info())
}

func TestRetry_GivesUp(t *testing.T) {
	boom := errors.New("boom")
	inner := testutil.NewScriptedModel(
		testutil.Fail(boom), testutil.Fail(boom), testutil.Fail(boom),
	)
	m := New(inner, fast, func(o *Options) { o.MaxRetries = 2 })

	_, err := model.Collect(context.Background(), m, model.Request{}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, inner.Calls())
}

func TestRetry_PermanentError(t *testing.T) {
	bad := errors.New("invalid request")
	inner := testutil.NewScriptedModel(testutil.Fail(bad), testutil.Reply("never"))
	m := New(inner, fast, func(o *Options) {
		o.Retryable = func(err error) bool { return !errors.Is(err, bad) }
	})

	_, err := model.Collect(context.Background(), m, model.Request{}, nil)
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, 1, inner.Calls())
}
