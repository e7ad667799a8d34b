package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sustainhub/sustainability-hub/internal/app"
	_ "github.com/sustainhub/sustainability-hub/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
