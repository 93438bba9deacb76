package validation

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BaSui01/sceneforge/testutil"
	"github.com/BaSui01/sceneforge/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func newValidator(t *testing.T, cfg Config) *Validator {
	t.Helper()
	v, err := NewValidator(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return v
}

func writeFixture(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, fixtures.WritePNG(path, img))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero std-dev threshold", func(c *Config) { c.MinStdDev = 0 }},
		{"combined above one", func(c *Config) { c.MinCombinedFraction = 1.5 }},
		{"no classes", func(c *Config) { c.Classes = nil; c.WaterClass, c.StructureClass = "", "" }},
		{"min above max", func(c *Config) { c.Classes[0].Min = RGB{200, 0, 0}; c.Classes[0].Max = RGB{100, 255, 255} }},
		{"duplicate class", func(c *Config) { c.Classes[1].Name = c.Classes[0].Name }},
		{"unnamed class", func(c *Config) { c.Classes[0].Name = "" }},
		{"negative fraction", func(c *Config) { c.Classes[2].MinFraction = -0.1 }},
		{"unknown water class", func(c *Config) { c.WaterClass = "lake" }},
		{"overlap half configured", func(c *Config) { c.StructureClass = "" }},
		{"same overlap classes", func(c *Config) { c.StructureClass = c.WaterClass }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Classes = append([]ColorClass(nil), cfg.Classes...)
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestColorClass_ContainsIsInclusive(t *testing.T) {
	cls := ColorClass{Min: RGB{10, 20, 30}, Max: RGB{40, 50, 60}}
	assert.True(t, cls.Contains(10, 20, 30))
	assert.True(t, cls.Contains(40, 50, 60))
	assert.False(t, cls.Contains(9, 20, 30))
	assert.False(t, cls.Contains(40, 51, 60))
}

func TestAnalyze_SceneAccepted(t *testing.T) {
	v := newValidator(t, DefaultConfig())
	report := v.Analyze(fixtures.Scene(fixtures.DefaultSceneOptions()))

	require.True(t, report.Passed(), "unexpected failure: %v", report.Failure)
	assert.Equal(t, 100, report.Width)
	assert.InDelta(t, 0.15, report.Fractions[ClassWater], 1e-9)
	assert.InDelta(t, 0.0108, report.Fractions[ClassTrunk], 1e-9)
	assert.Greater(t, report.Fractions[ClassGround], 0.5)
	assert.Greater(t, report.StdDev, 2.0)
}

func TestAnalyze_ObjectOverlap(t *testing.T) {
	v := newValidator(t, DefaultConfig())
	report := v.Analyze(fixtures.SceneWithOverlap(fixtures.DefaultSceneOptions()))

	require.NotNil(t, report.Failure)
	assert.Equal(t, ReasonObjectOverlap, report.Failure.Reason)
	assert.Contains(t, report.Failure.Detail, "(50,62)")
}

func TestAnalyze_OverlapDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaterClass, cfg.StructureClass = "", ""
	v := newValidator(t, cfg)

	report := v.Analyze(fixtures.SceneWithOverlap(fixtures.DefaultSceneOptions()))
	assert.True(t, report.Passed())
}

func TestAnalyze_UniformImage(t *testing.T) {
	v := newValidator(t, DefaultConfig())
	report := v.Analyze(fixtures.Uniform(64, 48, fixtures.GroundGreen))

	require.NotNil(t, report.Failure)
	assert.Equal(t, ReasonUniformImage, report.Failure.Reason)
	assert.Equal(t, 0.0, report.StdDev)
}

func TestAnalyze_InsufficientClass(t *testing.T) {
	// 没有河流：上半天空，下半草地，几个树干
	img := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			c := fixtures.GroundGreen
			if y < 25 {
				c = fixtures.SkyGray
			}
			img.SetNRGBA(x, y, c)
		}
	}
	img.SetNRGBA(5, 40, fixtures.TrunkBlack)

	v := newValidator(t, DefaultConfig())
	report := v.Analyze(img)
	require.NotNil(t, report.Failure)
	assert.Equal(t, InsufficientReason(ClassWater), report.Failure.Reason)
	assert.Equal(t, "insufficient-water", report.Failure.Reason)
}

func TestAnalyze_LowDiversity(t *testing.T) {
	cfg := DefaultConfig()
	for i := range cfg.Classes {
		cfg.Classes[i].MinFraction = 0
	}
	cfg.MinCombinedFraction = 0.5
	v := newValidator(t, cfg)

	// 90% 天空 + 10% 草地
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := fixtures.SkyGray
			if y == 9 {
				c = fixtures.GroundGreen
			}
			img.SetNRGBA(x, y, c)
		}
	}
	report := v.Analyze(img)
	require.NotNil(t, report.Failure)
	assert.Equal(t, ReasonLowDiversity, report.Failure.Reason)
}

func TestAnalyze_DownscalesLargeRenders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDimension = 200
	v := newValidator(t, cfg)

	report := v.Analyze(fixtures.Scene(fixtures.SceneOptions{Width: 1000, Height: 500, Trees: 3}))
	assert.Equal(t, 200, report.Width)
	assert.Equal(t, 100, report.Height)
	assert.True(t, report.Passed(), "unexpected failure: %v", report.Failure)
}

func TestAnalyze_FullHDChecksEveryPixel(t *testing.T) {
	v := newValidator(t, DefaultConfig())
	opts := fixtures.SceneOptions{Width: 1920, Height: 1080, Trees: 3}

	report := v.Analyze(fixtures.Scene(opts))
	assert.Equal(t, 1920, report.Width, "full resolution by default")
	assert.True(t, report.Passed(), "unexpected failure: %v", report.Failure)

	// 奇数列上的单个树干像素，缩放时会被跳过
	img := fixtures.Scene(opts)
	rs, re := opts.RiverColumns()
	img.SetNRGBA((rs+re)/2+1, 700, fixtures.TrunkBlack)

	report = v.Analyze(img)
	require.NotNil(t, report.Failure)
	assert.Equal(t, ReasonObjectOverlap, report.Failure.Reason)
	assert.Contains(t, report.Failure.Detail, "(961,700)")
}

func TestValidate_EvaluatesEveryArtifact(t *testing.T) {
	dir := t.TempDir()
	good := writeFixture(t, dir, "render_1.png", fixtures.Scene(fixtures.DefaultSceneOptions()))
	missing := filepath.Join(dir, "render_2.png")
	uniform := writeFixture(t, dir, "render_3.png", fixtures.Uniform(20, 20, fixtures.SkyGray))

	v := newValidator(t, DefaultConfig())
	verdict, err := v.Validate(context.Background(), []string{good, missing, uniform})
	require.NoError(t, err)

	assert.False(t, verdict.Accepted)
	require.Len(t, verdict.Artifacts, 3)
	assert.True(t, verdict.Artifacts[0].Passed())
	assert.Equal(t, ReasonMissingArtifact, verdict.Artifacts[1].Failure.Reason)
	assert.Equal(t, ReasonUniformImage, verdict.Artifacts[2].Failure.Reason)

	assert.Len(t, verdict.Failures(), 2)
	assert.Equal(t, []string{ReasonMissingArtifact, ReasonUniformImage}, verdict.Reasons())
	reason := verdict.Reason()
	assert.True(t, strings.HasPrefix(reason, "render_2.png: missing-artifact"))
	assert.Contains(t, reason, "; render_3.png: uniform-image (mean std-dev 0.00 < 2.00)")
}

func TestValidate_AllAccepted(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"render_1.png", "render_2.png", "render_3.png"} {
		paths = append(paths, writeFixture(t, dir, name, fixtures.Scene(fixtures.DefaultSceneOptions())))
	}

	v := newValidator(t, DefaultConfig())
	verdict, err := v.Validate(context.Background(), paths)
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.Empty(t, verdict.Reason())
	assert.Empty(t, verdict.Failures())
}

func TestValidate_OtherFormats(t *testing.T) {
	dir := t.TempDir()
	scene := fixtures.Scene(fixtures.DefaultSceneOptions())

	bmpPath := filepath.Join(dir, "render.bmp")
	f, err := os.Create(bmpPath)
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(f, scene))
	require.NoError(t, f.Close())

	tiffPath := filepath.Join(dir, "render.tiff")
	f, err = os.Create(tiffPath)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, scene, nil))
	require.NoError(t, f.Close())

	v := newValidator(t, DefaultConfig())
	verdict, err := v.Validate(context.Background(), []string{bmpPath, tiffPath})
	require.NoError(t, err)
	assert.True(t, verdict.Accepted, verdict.Reason())
}

func TestValidate_UnreadableArtifact(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "render.png", "not an image")

	v := newValidator(t, DefaultConfig())
	verdict, err := v.Validate(context.Background(), []string{path})
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
	assert.Equal(t, ReasonUnreadableArtifact, verdict.Artifacts[0].Failure.Reason)
}

func TestValidate_NoArtifacts(t *testing.T) {
	v := newValidator(t, DefaultConfig())
	_, err := v.Validate(context.Background(), nil)
	assert.Error(t, err)
}

func TestValidate_Cancelled(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "render.png", fixtures.Scene(fixtures.DefaultSceneOptions()))
	v := newValidator(t, DefaultConfig())
	_, err := v.Validate(testutil.CancelledContext(), []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}
