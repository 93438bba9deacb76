package feedback

import (
	"strings"
	"testing"

	"github.com/BaSui01/sceneforge/agent/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const basePrompt = "Build a river scene."

func newSynthesizer(t *testing.T, cfg Config) *Synthesizer {
	t.Helper()
	s, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func rejected(reports ...validation.ArtifactReport) *validation.Verdict {
	return &validation.Verdict{Accepted: false, Artifacts: reports}
}

func failed(path, reason, detail string) validation.ArtifactReport {
	return validation.ArtifactReport{Path: path, Failure: &validation.Failure{Reason: reason, Detail: detail}}
}

func TestSynthesize_Signatures(t *testing.T) {
	tests := []struct {
		name        string
		diagnostics string
		matched     []string
	}{
		{
			name:        "indentation",
			diagnostics: "  File \"scene.py\", line 12\nIndentationError: unexpected indent",
			matched:     []string{"indentation"},
		},
		{
			name:        "expected block",
			diagnostics: "IndentationError: expected an indented block after 'for' statement on line 4",
			matched:     []string{"indentation", "expected-block"},
		},
		{
			name:        "use before definition",
			diagnostics: "UnboundLocalError: local variable 'tree' referenced before assignment",
			matched:     []string{"use-before-definition"},
		},
		{
			name:        "name error",
			diagnostics: "NameError: name 'positions' is not defined",
			matched:     []string{"use-before-definition"},
		},
		{
			name:        "module",
			diagnostics: "ModuleNotFoundError: No module named 'numpy'",
			matched:     []string{"unsupported-module"},
		},
		{
			name:        "attribute",
			diagnostics: "AttributeError: 'Object' object has no attribute 'color_ramp'",
			matched:     []string{"missing-attribute"},
		},
		{
			name:        "key",
			diagnostics: "KeyError: 'bpy_prop_collection[key]: key \"Specular\" not found'",
			matched:     []string{"missing-key"},
		},
		{
			name:        "context",
			diagnostics: "RuntimeError: Operator bpy.ops.object.editmode_toggle.poll() failed, context is incorrect",
			matched:     []string{"context"},
		},
		{
			name:        "timeout",
			diagnostics: "execution timed out",
			matched:     []string{"timeout"},
		},
	}
	s := newSynthesizer(t, DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Synthesize(basePrompt, Input{Diagnostics: tt.diagnostics})
			assert.Equal(t, tt.matched, res.Matched)
			assert.True(t, strings.HasPrefix(res.Prompt, basePrompt+"\n\n"+Header+"\n- "))
			assert.NotContains(t, res.Prompt, "Engine error output")
		})
	}
}

func TestSynthesize_FormatAndOrder(t *testing.T) {
	s := newSynthesizer(t, DefaultConfig())
	res := s.Synthesize(basePrompt, Input{
		Diagnostics: "NameError: name 'x' is not defined\nIndentationError: unexpected indent",
	})

	want := basePrompt + "\n\n" + Header + "\n" +
		"- Fix the indentation problems: no superfluous indentation and no missing indented block.\n" +
		"- Make sure every variable is defined before it is used.\n"
	assert.Equal(t, want, res.Prompt)
}

func TestSynthesize_UnknownDiagnostics(t *testing.T) {
	s := newSynthesizer(t, DefaultConfig())
	res := s.Synthesize(basePrompt, Input{Diagnostics: "Blender quit: segmentation fault"})

	assert.Equal(t, []string{"diagnostics"}, res.Matched)
	assert.Contains(t, res.Prompt, "Engine error output:\nBlender quit: segmentation fault\n")

	cfg := DefaultConfig()
	cfg.IncludeDiagnostics = false
	quiet := newSynthesizer(t, cfg)
	res = quiet.Synthesize(basePrompt, Input{Diagnostics: "Blender quit: segmentation fault"})
	assert.False(t, res.Changed())
	assert.Equal(t, basePrompt, res.Prompt)
}

func TestSynthesize_VerdictReasons(t *testing.T) {
	s := newSynthesizer(t, DefaultConfig())
	verdict := rejected(
		validation.ArtifactReport{Path: "renders/render_1.png"},
		failed("renders/render_2.png", validation.ReasonObjectOverlap, "trunk pixel at (5,6) inside water span [1,9]"),
		failed("renders/render_3.png", validation.ReasonObjectOverlap, "trunk pixel at (7,8) inside water span [1,9]"),
	)
	res := s.Synthesize(basePrompt, Input{Verdict: verdict})

	assert.Equal(t, []string{validation.ReasonObjectOverlap, "validation"}, res.Matched)
	assert.Contains(t, res.Prompt, "- Trees overlap the river: place every tree outside the river footprint.\n")
	assert.Contains(t, res.Prompt, "- Validation failed: "+verdict.Reason()+"\n")
}

func TestSynthesize_UnknownClassReason(t *testing.T) {
	s := newSynthesizer(t, DefaultConfig())
	res := s.Synthesize(basePrompt, Input{
		Verdict: rejected(failed("render.png", validation.InsufficientReason("sand"), "")),
	})
	assert.Contains(t, res.Prompt, "Not enough sand is visible in the render")
}

func TestSynthesize_DiagnosticsTakePrecedenceOverVerdict(t *testing.T) {
	s := newSynthesizer(t, DefaultConfig())
	res := s.Synthesize(basePrompt, Input{
		Diagnostics: "SyntaxError: invalid syntax",
		Verdict:     rejected(failed("render.png", validation.ReasonMissingArtifact, "")),
	})
	assert.Equal(t, []string{"syntax"}, res.Matched)
}

func TestSynthesize_AcceptedIsNoop(t *testing.T) {
	s := newSynthesizer(t, DefaultConfig())
	res := s.Synthesize(basePrompt, Input{Verdict: &validation.Verdict{Accepted: true}})
	assert.False(t, res.Changed())
	assert.Equal(t, basePrompt, res.Prompt)
}

func TestSynthesize_RequiredIdentifiersAndPriorSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequiredIdentifiers = []string{"positions"}
	cfg.IncludePriorSource = true
	s := newSynthesizer(t, cfg)

	program := "import bpy\nbpy.ops.mesh.primitive_plane_add(size=50)"
	res := s.Synthesize(basePrompt, Input{
		Verdict: rejected(failed("render.png", validation.ReasonUniformImage, "")),
		Program: program,
	})

	assert.Contains(t, res.Matched, "missing-positions")
	assert.Contains(t, res.Prompt, "- Correct this: the variable 'positions' is not defined.\n")
	assert.True(t, strings.HasSuffix(res.Prompt, "\nPrevious script:\n"+program+"\n"))

	res = s.Synthesize(basePrompt, Input{
		Verdict: rejected(failed("render.png", validation.ReasonUniformImage, "")),
		Program: "positions = []\n",
	})
	assert.NotContains(t, res.Matched, "missing-positions")
}

func TestNew_CustomSignatures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Signatures = []SignatureSpec{{
		Name:        "gpu",
		Pattern:     `(?i)out of gpu memory`,
		Instruction: "Use the CPU device for rendering.",
	}}
	s := newSynthesizer(t, cfg)
	assert.Len(t, s.Signatures(), len(DefaultSignatures())+1)

	res := s.Synthesize(basePrompt, Input{Diagnostics: "CUDA error: Out of GPU memory"})
	assert.Equal(t, []string{"gpu"}, res.Matched)

	cfg.Signatures = []SignatureSpec{{Name: "bad", Pattern: `(`, Instruction: "x"}}
	_, err := New(cfg, nil)
	assert.Error(t, err)

	cfg.Signatures = []SignatureSpec{{Name: "empty", Pattern: `x`}}
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short", 10))
	assert.Equal(t, "line3\nline4", tail("line1\nline2\nline3\nline4", 14))
}
