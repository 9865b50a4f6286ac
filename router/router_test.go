package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertice-labs/agentcore/core"
	"github.com/vertice-labs/agentcore/provider"
	"github.com/vertice-labs/agentcore/provider/mock"
)

func TestVerticeClient_GenerateFailsOverToNextEligibleProvider(t *testing.T) {
	a := mock.New("A")
	a.SetError(errors.New("down"))
	b := mock.New("B")
	b.SetResponses("from-b")

	v := New(Config{}, a, b)
	result, err := v.Generate(context.Background(), nil, provider.Options{})
	require.NoError(t, err)
	assert.Equal(t, "from-b", result.Content)
}

func TestVerticeClient_AllProvidersExhausted(t *testing.T) {
	a := mock.New("A")
	a.SetError(errors.New("down-a"))
	b := mock.New("B")
	b.SetError(errors.New("down-b"))

	v := New(Config{}, a, b)
	_, err := v.Generate(context.Background(), nil, provider.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAllProvidersExhausted)

	var exhausted *core.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []string{"A", "B"}, exhausted.Tried)
	assert.Equal(t, "A.mock: down-a", exhausted.Errors["A"])
	assert.Equal(t, "B.mock: down-b", exhausted.Errors["B"])
}

func TestVerticeClient_IneligibleProviderSkipped(t *testing.T) {
	a := mock.New("A")
	a.SetAvailable(false)
	b := mock.New("B")
	b.SetResponses("from-b")

	v := New(Config{}, a, b)
	result, err := v.Generate(context.Background(), nil, provider.Options{})
	require.NoError(t, err)
	assert.Equal(t, "from-b", result.Content)
	assert.Equal(t, 0, a.CallCount)
}

func TestVerticeClient_FailureThresholdMakesProviderIneligible(t *testing.T) {
	a := mock.New("A")
	a.SetError(errors.New("down"))
	b := mock.New("B")
	b.SetResponses("ok", "ok", "ok")

	v := New(Config{FailureThreshold: 2}, a, b)

	for i := 0; i < 2; i++ {
		_, err := v.Generate(context.Background(), nil, provider.Options{})
		require.NoError(t, err)
	}

	status := v.Status()
	var aStatus ProviderStatus
	for _, s := range status {
		if s.Name == "A" {
			aStatus = s
		}
	}
	assert.False(t, aStatus.Eligible, "A should be ineligible after hitting the failure threshold")
	assert.Equal(t, 2, aStatus.Failures)
}

func TestVerticeClient_SuccessClearsFailureCounter(t *testing.T) {
	a := mock.New("A")
	a.SetError(errors.New("down"))
	b := mock.New("B")
	b.SetResponses("ok")

	v := New(Config{FailureThreshold: 5}, a, b)
	_, err := v.Generate(context.Background(), nil, provider.Options{})
	require.NoError(t, err)

	a.SetError(nil)
	a.SetResponses("a-recovered")
	v.SetPreferredProvider("A")

	result, err := v.Generate(context.Background(), nil, provider.Options{})
	require.NoError(t, err)
	assert.Equal(t, "a-recovered", result.Content)

	for _, s := range v.Status() {
		if s.Name == "A" {
			assert.Equal(t, 0, s.Failures)
		}
	}
}

func TestVerticeClient_StreamChatForwardsChunksVerbatim(t *testing.T) {
	a := mock.New("A")
	a.SetResponses("hello world")

	v := New(Config{}, a)
	ch, err := v.StreamChat(context.Background(), nil, provider.Options{})
	require.NoError(t, err)

	var text string
	for chunk := range ch {
		text += chunk.Text
	}
	assert.Equal(t, "hello world", text)
}

func TestVerticeClient_SetPreferredProviderReordersList(t *testing.T) {
	a := mock.New("A")
	a.SetResponses("from-a")
	b := mock.New("B")
	b.SetResponses("from-b")

	v := New(Config{}, a, b)
	v.SetPreferredProvider("B")

	result, err := v.Generate(context.Background(), nil, provider.Options{})
	require.NoError(t, err)
	assert.Equal(t, "from-b", result.Content)
	assert.Equal(t, 0, a.CallCount)
}
