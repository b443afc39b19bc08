package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realexport/realexport/internal/models"
)

func TestVideoFlagsMirrorOptions(t *testing.T) {
	flags := newVideoCmd(&app{}).Flags()

	for _, name := range []string{
		"out", "content", "position", "fps", "width", "height",
		"from", "to", "date-overlay", "vision",
	} {
		assert.NotNil(t, flags.Lookup(name), "missing flag %s", name)
	}

	dateOverlay := flags.Lookup("date-overlay")
	require.NotNil(t, dateOverlay)
	assert.Equal(t, "false", dateOverlay.DefValue)
}

func TestParsePosition(t *testing.T) {
	for _, s := range []string{"auto", "all", "top-left", "top-right", "bottom-left", "bottom-right"} {
		pos, err := parsePosition(s)
		require.NoError(t, err)
		assert.Equal(t, models.OverlayPosition(s), pos)
	}

	_, err := parsePosition("center")
	assert.Error(t, err)
}

func TestParseVideoPositionRejectsAll(t *testing.T) {
	_, err := parseVideoPosition("all")
	assert.Error(t, err)

	pos, err := parseVideoPosition("auto")
	require.NoError(t, err)
	assert.Equal(t, models.PositionAuto, pos)

	pos, err = parseVideoPosition("bottom-right")
	require.NoError(t, err)
	assert.Equal(t, models.PositionBottomRight, pos)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-01-15")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseDate("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseDate("15/01/2024")
	assert.Error(t, err)
}
