package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryReturnsSameHandle(t *testing.T) {
	f := &Factory{}
	cfg := Config{URL: "https://project.example.co", AnonKey: "anon"}

	first, err := f.Get(cfg)
	require.NoError(t, err)
	second, err := f.Get(cfg)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestFactoryRejectsMissingConfig(t *testing.T) {
	cases := []Config{
		{AnonKey: "anon"},
		{URL: "https://project.example.co"},
		{URL: "not a url", AnonKey: "anon"},
	}
	for _, cfg := range cases {
		f := &Factory{}
		client, err := f.Get(cfg)
		assert.Nil(t, client)
		assert.True(t, errors.Is(err, ErrConfig), "config %+v: %v", cfg, err)
	}
}

func TestFactoryResetBuildsNewHandle(t *testing.T) {
	f := &Factory{}
	cfg := Config{URL: "https://project.example.co/", AnonKey: "anon"}

	first, err := f.Get(cfg)
	require.NoError(t, err)
	f.Reset()
	second, err := f.Get(cfg)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, "https://project.example.co", second.BaseURL())
}
