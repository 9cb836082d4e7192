package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputFile(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", "movie.mkv"}, "movie.mkv"},
		{[]string{"-i", "clip.mp4", "-show_streams"}, "clip.mp4"},
		{[]string{"-show_format", "a.webm"}, "a.webm"},
		{[]string{"-v", "error"}, ""},
		{nil, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, inputFile(tt.args), tt.args)
	}
}
