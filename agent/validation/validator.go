package validation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// channelLevels 0..255，与直方图一起给出加权标准差
var channelLevels = func() []float64 {
	l := make([]float64, 256)
	for i := range l {
		l[i] = float64(i)
	}
	return l
}()

// Validator 只根据像素判断渲染结果是否符合场景构成，不读取生成程序。
type Validator struct {
	cfg    Config
	water  int
	struc  int
	logger *zap.Logger
}

// NewValidator 创建 Validator
func NewValidator(cfg Config, logger *zap.Logger) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{
		cfg:    cfg,
		water:  -1,
		struc:  -1,
		logger: logger.With(zap.String("component", "validation")),
	}
	for i, cls := range cfg.Classes {
		switch cls.Name {
		case cfg.WaterClass:
			v.water = i
		case cfg.StructureClass:
			v.struc = i
		}
	}
	return v, nil
}

// Validate 校验全部产物。不会因某个产物失败而提前返回；
// 只有 ctx 取消时返回错误。
func (v *Validator) Validate(ctx context.Context, paths []string) (*Verdict, error) {
	if len(paths) == 0 {
		return nil, errors.New("validation: no artifacts to validate")
	}
	start := time.Now()

	reports := make([]ArtifactReport, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if v.cfg.Concurrency > 0 {
		g.SetLimit(v.cfg.Concurrency)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = v.validateFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validation cancelled: %w", err)
	}

	verdict := &Verdict{Accepted: true, Artifacts: reports}
	for _, r := range reports {
		if !r.Passed() {
			verdict.Accepted = false
		}
	}

	v.logger.Debug("artifacts validated",
		zap.Int("artifacts", len(paths)),
		zap.Bool("accepted", verdict.Accepted),
		zap.String("reason", verdict.Reason()),
		zap.Duration("duration", time.Since(start)))
	return verdict, nil
}

func (v *Validator) validateFile(path string) ArtifactReport {
	img, err := loadRaster(path)
	if err != nil {
		reason := ReasonUnreadableArtifact
		if errors.Is(err, fs.ErrNotExist) {
			reason = ReasonMissingArtifact
		}
		return ArtifactReport{Path: path, Failure: &Failure{Reason: reason, Detail: err.Error()}}
	}
	report := v.Analyze(img)
	report.Path = path
	return report
}

// Analyze 对已解码的图片执行全部检查，按以下顺序给出第一个失败原因：
// 纯色图、单类别占比、总体多样性、水体与结构重叠。
func (v *Validator) Analyze(src image.Image) ArtifactReport {
	img := toNRGBA(src, v.cfg.MaxDimension)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	report := ArtifactReport{Width: w, Height: h}
	n := w * h
	if n == 0 {
		report.Failure = &Failure{Reason: ReasonUniformImage, Detail: "empty image"}
		return report
	}

	// 一次遍历：通道直方图（标准差）、类别计数、水体每行的横向范围
	var hist [3][256]float64
	counts := make([]int, len(v.cfg.Classes))
	spanMin := make([]int, h)
	spanMax := make([]int, h)
	for y := range spanMin {
		spanMin[y], spanMax[y] = -1, -1
	}
	type point struct{ x, y int }
	var structure []point

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			hist[0][r]++
			hist[1][g]++
			hist[2][b]++
			for ci, cls := range v.cfg.Classes {
				if !cls.Contains(r, g, b) {
					continue
				}
				counts[ci]++
				switch ci {
				case v.water:
					if spanMin[y] < 0 || x < spanMin[y] {
						spanMin[y] = x
					}
					if x > spanMax[y] {
						spanMax[y] = x
					}
				case v.struc:
					structure = append(structure, point{x, y})
				}
			}
		}
	}

	// 1. 纯色检查
	report.StdDev = (stat.PopStdDev(channelLevels, hist[0][:]) +
		stat.PopStdDev(channelLevels, hist[1][:]) +
		stat.PopStdDev(channelLevels, hist[2][:])) / 3
	if report.StdDev < v.cfg.MinStdDev {
		report.Failure = &Failure{
			Reason: ReasonUniformImage,
			Detail: fmt.Sprintf("mean std-dev %.2f < %.2f", report.StdDev, v.cfg.MinStdDev),
		}
		return report
	}

	// 2. 类别占比
	report.Fractions = make(map[string]float64, len(counts))
	combined := 0.0
	for ci, cls := range v.cfg.Classes {
		frac := float64(counts[ci]) / float64(n)
		report.Fractions[cls.Name] = frac
		combined += frac
	}

	// 3. 单类别占比
	for _, cls := range v.cfg.Classes {
		if frac := report.Fractions[cls.Name]; frac < cls.MinFraction {
			report.Failure = &Failure{
				Reason: InsufficientReason(cls.Name),
				Detail: fmt.Sprintf("%s pixel ratio %.4f < %.4f", cls.Name, frac, cls.MinFraction),
			}
			return report
		}
	}

	// 4. 总体多样性
	if combined < v.cfg.MinCombinedFraction {
		report.Failure = &Failure{
			Reason: ReasonLowDiversity,
			Detail: fmt.Sprintf("combined class ratio %.4f < %.4f", combined, v.cfg.MinCombinedFraction),
		}
		return report
	}

	// 5. 结构像素落在同一行水体范围内即视为重叠
	if v.water >= 0 && v.struc >= 0 {
		for _, p := range structure {
			if spanMin[p.y] >= 0 && spanMin[p.y] <= p.x && p.x <= spanMax[p.y] {
				report.Failure = &Failure{
					Reason: ReasonObjectOverlap,
					Detail: fmt.Sprintf("%s pixel at (%d,%d) inside %s span [%d,%d]",
						v.cfg.StructureClass, p.x, p.y, v.cfg.WaterClass, spanMin[p.y], spanMax[p.y]),
				}
				return report
			}
		}
	}
	return report
}
