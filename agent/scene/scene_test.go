package scene

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputLayout_Filenames(t *testing.T) {
	single := OutputLayout{Dir: "renders", Base: "render", Ext: ".png", Count: 1}
	assert.Equal(t, []string{"render.png"}, single.Filenames())

	multi := DefaultLayout()
	assert.Equal(t, []string{"render_1.png", "render_2.png", "render_3.png"}, multi.Filenames())
	assert.Equal(t, "render_2.png", multi.Filename(2))
}

func TestOutputLayout_Paths(t *testing.T) {
	l := DefaultLayout()
	paths := l.Paths("/tmp/work")
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join("/tmp/work", "renders", "render_1.png"), paths[0])
}

func TestOutputLayout_Validate(t *testing.T) {
	tests := []struct {
		name    string
		layout  OutputLayout
		wantErr bool
	}{
		{"default", DefaultLayout(), false},
		{"zero count", OutputLayout{Dir: "renders", Base: "render", Ext: ".png"}, true},
		{"absolute dir", OutputLayout{Dir: "/renders", Base: "render", Ext: ".png", Count: 1}, true},
		{"escaping dir", OutputLayout{Dir: "../out", Base: "render", Ext: ".png", Count: 1}, true},
		{"quote in base", OutputLayout{Dir: "renders", Base: "ren'der", Ext: ".png", Count: 1}, true},
		{"ext without dot", OutputLayout{Dir: "renders", Base: "render", Ext: "png", Count: 1}, true},
		{"nested dir", OutputLayout{Dir: "out/renders", Base: "render", Ext: ".png", Count: 1}, true},
		{"underscore base", OutputLayout{Dir: "renders", Base: "cam_1", Ext: ".png", Count: 2}, true},
		{"hyphen base", OutputLayout{Dir: "out_dir", Base: "shot-a", Ext: ".jpg", Count: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	_, err := New("x", "   ", DefaultLayout())
	assert.ErrorIs(t, err, ErrEmptyDescription)

	s, err := New("x", " a river ", DefaultLayout())
	require.NoError(t, err)
	assert.Equal(t, "a river", s.Description)
}

func TestSpec_Prompt(t *testing.T) {
	p := Default().Prompt()
	assert.Contains(t, p, "rectangular river")
	assert.Contains(t, p, "'renders'")
	assert.Contains(t, p, "'render_1.png', 'render_2.png', 'render_3.png'")

	single := Spec{Description: "cube", Layout: OutputLayout{Dir: "renders", Base: "render", Ext: ".png", Count: 1}}
	assert.Contains(t, single.Prompt(), "Name the output file 'render.png'.")
}
