package validation

import (
	"errors"
	"fmt"
)

// RGB 一个颜色分量三元组
type RGB [3]uint8

// ColorClass 一个语义类别：分量闭区间盒 [Min, Max] 与最低像素占比。
type ColorClass struct {
	Name        string  `yaml:"name" json:"name"`
	Min         RGB     `yaml:"min" json:"min"`
	Max         RGB     `yaml:"max" json:"max"`
	MinFraction float64 `yaml:"min_fraction" json:"min_fraction"`
}

// Contains 判断像素是否落在盒内
func (c ColorClass) Contains(r, g, b uint8) bool {
	return r >= c.Min[0] && r <= c.Max[0] &&
		g >= c.Min[1] && g <= c.Max[1] &&
		b >= c.Min[2] && b <= c.Max[2]
}

// Config 校验阈值
type Config struct {
	// MinStdDev 三个通道标准差的均值低于此值视为纯色图
	MinStdDev float64      `yaml:"min_std_dev" env:"MIN_STD_DEV"`
	Classes   []ColorClass `yaml:"classes"`
	// MinCombinedFraction 所有类别占比之和的下限
	MinCombinedFraction float64 `yaml:"min_combined_fraction" env:"MIN_COMBINED_FRACTION"`

	// WaterClass 与 StructureClass 为空时跳过重叠检查
	WaterClass     string `yaml:"water_class" env:"WATER_CLASS"`
	StructureClass string `yaml:"structure_class" env:"STRUCTURE_CLASS"`

	// MaxDimension 较长边超过此值时先最近邻缩小，结果是近似的：
	// 细小的结构或重叠像素可能被跳过。默认 0，按原始分辨率逐像素检查。
	MaxDimension int `yaml:"max_dimension" env:"MAX_DIMENSION"`
	Concurrency  int `yaml:"concurrency" env:"CONCURRENCY"`
}

// 默认类别名
const (
	ClassGround = "ground"
	ClassWater  = "water"
	ClassTrunk  = "trunk"
)

// DefaultConfig 河流森林场景的默认阈值：绿色地面、蓝色河流、深色树干。
func DefaultConfig() Config {
	return Config{
		MinStdDev: 2.0,
		Classes: []ColorClass{
			{Name: ClassGround, Min: RGB{0, 151, 0}, Max: RGB{99, 255, 99}, MinFraction: 0.05},
			{Name: ClassWater, Min: RGB{0, 0, 121}, Max: RGB{79, 119, 255}, MinFraction: 0.01},
			{Name: ClassTrunk, Min: RGB{0, 0, 0}, Max: RGB{39, 39, 39}, MinFraction: 0.0005},
		},
		MinCombinedFraction: 0.10,
		WaterClass:          ClassWater,
		StructureClass:      ClassTrunk,
		Concurrency:         4,
	}
}

// Validate 检查阈值配置
func (c Config) Validate() error {
	if c.MinStdDev <= 0 {
		return fmt.Errorf("validation: min_std_dev must be positive, got %v", c.MinStdDev)
	}
	if c.MinCombinedFraction < 0 || c.MinCombinedFraction > 1 {
		return fmt.Errorf("validation: min_combined_fraction must be within [0,1], got %v", c.MinCombinedFraction)
	}
	if len(c.Classes) == 0 {
		return errors.New("validation: at least one color class is required")
	}

	seen := make(map[string]bool, len(c.Classes))
	for _, cls := range c.Classes {
		if cls.Name == "" {
			return errors.New("validation: color class name is required")
		}
		if seen[cls.Name] {
			return fmt.Errorf("validation: duplicate color class %q", cls.Name)
		}
		seen[cls.Name] = true
		for i := range cls.Min {
			if cls.Min[i] > cls.Max[i] {
				return fmt.Errorf("validation: class %q has min > max on channel %d", cls.Name, i)
			}
		}
		if cls.MinFraction < 0 || cls.MinFraction > 1 {
			return fmt.Errorf("validation: class %q min_fraction must be within [0,1]", cls.Name)
		}
	}

	if (c.WaterClass == "") != (c.StructureClass == "") {
		return errors.New("validation: water_class and structure_class must be set together")
	}
	for _, name := range []string{c.WaterClass, c.StructureClass} {
		if name != "" && !seen[name] {
			return fmt.Errorf("validation: unknown class %q", name)
		}
	}
	if c.WaterClass != "" && c.WaterClass == c.StructureClass {
		return errors.New("validation: water_class and structure_class must differ")
	}
	return nil
}
