package imagesearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "The Last Supper", want: "https://placehold.co/600x400?text=The+Last+Supper"},
		{title: "  Pietà ", want: "https://placehold.co/600x400?text=Piet%C3%A0"},
		{title: "", want: "https://placehold.co/600x400?text=Artwork"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := Placeholder(tt.title)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsPlaceholder(got))
			assert.Equal(t, got, Placeholder(tt.title), "placeholder must be deterministic")
		})
	}

	assert.False(t, IsPlaceholder("https://upload.wikimedia.org/a.jpg"))
}

func TestSearchPhrase(t *testing.T) {
	assert.Equal(t, "Leonardo da Vinci The Last Supper painting artwork", SearchPhrase("Leonardo da Vinci", "The Last Supper"))
	assert.Equal(t, "Untitled painting artwork", SearchPhrase("", " Untitled "))
}
