package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPadZero(t *testing.T) {
	tests := []struct {
		n, width int
		want     string
	}{
		{7, 2, "07"},
		{7, 3, "007"},
		{12, 2, "12"},
		{123, 2, "123"},
		{0, 2, "00"},
		{5, 0, "5"},
		{-3, 3, "-03"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PadZero(tt.n, tt.width), "PadZero(%d, %d)", tt.n, tt.width)
	}
}

func TestCleanPath(t *testing.T) {
	assert.Equal(t, "/", CleanPath(""))
	assert.Equal(t, "/a/b", CleanPath("a/b/"))
	assert.Equal(t, "/b", CleanPath("/a/../b"))
}

func TestNewDirInfo(t *testing.T) {
	now := time.Now()
	fi := NewDirInfo("movies", now)
	assert.True(t, fi.IsDir())
	assert.True(t, fi.Mode().IsDir())
	assert.Equal(t, "movies", fi.Name())
	assert.Equal(t, now, fi.ModTime())
}
