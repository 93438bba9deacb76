// Package fixtures 提供测试用的合成渲染图与样例生成程序。
package fixtures

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// 合成图使用的颜色，分别落在默认校验类别的 RGB 盒内（天空不属于任何类别）。
var (
	GroundGreen = color.NRGBA{R: 40, G: 200, B: 40, A: 255}
	WaterBlue   = color.NRGBA{R: 20, G: 60, B: 200, A: 255}
	TrunkBlack  = color.NRGBA{R: 10, G: 10, B: 10, A: 255}
	SkyGray     = color.NRGBA{R: 150, G: 150, B: 160, A: 255}
)

// SceneOptions 合成场景参数
type SceneOptions struct {
	Width  int
	Height int
	Trees  int
}

// DefaultSceneOptions 100x100，三棵树
func DefaultSceneOptions() SceneOptions {
	return SceneOptions{Width: 100, Height: 100, Trees: 3}
}

// RiverColumns 返回河流所在的列区间 [start, end)。
func (o SceneOptions) RiverColumns() (int, int) {
	return o.Width * 2 / 5, o.Width * 3 / 5
}

// HorizonRow 返回天空与地面的分界行。
func (o SceneOptions) HorizonRow() int {
	return o.Height / 4
}

// Scene 绘制一张满足默认阈值的俯视场景：上方天空，地面中间一条竖直河流，
// 树干分布在河流两侧的地面上，与河流不相交。
func Scene(o SceneOptions) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, o.Width, o.Height))
	horizon := o.HorizonRow()
	riverStart, riverEnd := o.RiverColumns()

	for y := 0; y < o.Height; y++ {
		for x := 0; x < o.Width; x++ {
			switch {
			case y < horizon:
				img.SetNRGBA(x, y, SkyGray)
			case x >= riverStart && x < riverEnd:
				img.SetNRGBA(x, y, WaterBlue)
			default:
				img.SetNRGBA(x, y, GroundGreen)
			}
		}
	}

	trunkW := max(1, o.Width/30)
	trunkH := max(1, o.Height/8)
	top := horizon + (o.Height-horizon)/3
	for i := 0; i < o.Trees; i++ {
		var x0 int
		if i%2 == 0 {
			// 左岸
			x0 = 2 + (i/2)*(trunkW+3)
		} else {
			// 右岸
			x0 = riverEnd + 2 + (i/2)*(trunkW+3)
		}
		for y := top; y < min(o.Height, top+trunkH); y++ {
			for x := x0; x < min(o.Width, x0+trunkW); x++ {
				if x >= riverStart && x < riverEnd {
					continue
				}
				img.SetNRGBA(x, y, TrunkBlack)
			}
		}
	}
	return img
}

// SceneWithOverlap 与 Scene 相同，但在河流中央画了一个树干像素。
func SceneWithOverlap(o SceneOptions) *image.NRGBA {
	img := Scene(o)
	riverStart, riverEnd := o.RiverColumns()
	y := o.HorizonRow() + (o.Height-o.HorizonRow())/2
	img.SetNRGBA((riverStart+riverEnd)/2, y, TrunkBlack)
	return img
}

// Uniform 返回纯色图片
func Uniform(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// WritePNG 将图片写入 path（自动创建父目录）
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create fixture dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create fixture: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode fixture: %w", err)
	}
	return f.Close()
}
