package vision

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/framecrop/pkg/types"
)

// SubjectDetector finds salient regions with an edge and brightness map.
// It needs no model and runs offline.
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	EdgeThreshold   float64 `json:"edge_threshold" yaml:"edge_threshold"`
	ContrastWeight  float64 `json:"contrast_weight" yaml:"contrast_weight"`
	ColorWeight     float64 `json:"color_weight" yaml:"color_weight"`
	MinSubjectRatio float64 `json:"min_subject_ratio" yaml:"min_subject_ratio"`
	// MaxDimension downsamples larger images before analysis
	MaxDimension int `json:"max_dimension" yaml:"max_dimension"`
	// TopRegions is how many regions are averaged into the focus point
	TopRegions int `json:"top_regions" yaml:"top_regions"`
}

// DefaultConfig returns the tuned defaults
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		EdgeThreshold:   0.01,
		ContrastWeight:  0.3,
		ColorWeight:     0.2,
		MinSubjectRatio: 0.05,
		MaxDimension:    256,
		TopRegions:      5,
	}
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{config: DefaultConfig()}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	def := DefaultConfig()
	if config.MaxDimension <= 0 {
		config.MaxDimension = def.MaxDimension
	}
	if config.TopRegions <= 0 {
		config.TopRegions = def.TopRegions
	}
	return &SubjectDetector{config: config}
}

// Region represents a rectangular region of interest
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// DetectSubjects returns up to ten regions of interest, best first, in the
// coordinates of img
func (d *SubjectDetector) DetectSubjects(img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}
	work, factor := d.downsample(img)
	wb := work.Bounds()
	width, height := wb.Dx(), wb.Dy()

	saliencyMap := d.calculateSaliencyMap(work)
	regions := d.findImportantRegions(saliencyMap, width, height)
	regions = d.filterAndScoreRegions(regions, width, height)
	if len(regions) > 10 {
		regions = regions[:10]
	}
	for i := range regions {
		regions[i].X = int(float64(regions[i].X) * factor)
		regions[i].Y = int(float64(regions[i].Y) * factor)
		regions[i].Width = int(float64(regions[i].Width) * factor)
		regions[i].Height = int(float64(regions[i].Height) * factor)
	}
	return regions, nil
}

// Focus returns the normalized point the crop should center on: the
// score-weighted center of the strongest regions, or the image center when
// nothing stands out.
func (d *SubjectDetector) Focus(img image.Image) (types.Point, error) {
	regions, err := d.DetectSubjects(img)
	if err != nil {
		return types.Point{}, err
	}
	center := types.Point{X: 0.5, Y: 0.5}
	if len(regions) == 0 {
		return center, nil
	}
	if len(regions) > d.config.TopRegions {
		regions = regions[:d.config.TopRegions]
	}
	var sx, sy, total float64
	for _, r := range regions {
		cx, cy := r.Center()
		sx += float64(cx) * r.Score
		sy += float64(cy) * r.Score
		total += r.Score
	}
	if total <= 0 {
		return center, nil
	}
	b := img.Bounds()
	return types.Point{
		X: sx / total / float64(b.Dx()),
		Y: sy / total / float64(b.Dy()),
	}, nil
}

// downsample returns a working copy no larger than MaxDimension and the
// factor mapping working coordinates back to the original
func (d *SubjectDetector) downsample(img image.Image) (image.Image, float64) {
	b := img.Bounds()
	maxDim := d.config.MaxDimension
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return img, 1
	}
	small := imaging.Fit(img, maxDim, maxDim, imaging.Box)
	return small, float64(b.Dx()) / float64(small.Bounds().Dx())
}

var neighbors = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

func (d *SubjectDetector) calculateSaliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliencyMap := make([][]float64, height)
	for i := range saliencyMap {
		saliencyMap[i] = make([]float64, width)
	}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			var edgeStrength float64
			for _, offset := range neighbors {
				r2, g2, b2, _ := img.At(x+offset[0]+bounds.Min.X, y+offset[1]+bounds.Min.Y).RGBA()
				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edgeStrength += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edgeStrength /= 8.0 * 65535.0

			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)
			saliencyMap[y][x] = d.config.ContrastWeight*edgeStrength + d.config.ColorWeight*brightness
		}
	}
	return saliencyMap
}

func (d *SubjectDetector) findImportantRegions(saliencyMap [][]float64, width, height int) []Region {
	var regions []Region

	// sliding square windows of several sizes
	windowSizes := []int{width / 20, width / 16, width / 12, width / 8, width / 4}
	for _, windowSize := range windowSizes {
		if windowSize < 10 {
			continue
		}
		step := max(1, windowSize/8)
		for y := 0; y <= height-windowSize; y += step {
			for x := 0; x <= width-windowSize; x += step {
				score := calculateRegionScore(saliencyMap, x, y, windowSize, windowSize)
				if score > d.config.EdgeThreshold {
					regions = append(regions, Region{X: x, Y: y, Width: windowSize, Height: windowSize, Score: score})
				}
			}
		}
	}
	return regions
}

func calculateRegionScore(saliencyMap [][]float64, x, y, width, height int) float64 {
	var totalScore float64
	count := 0
	for ry := y; ry < y+height && ry < len(saliencyMap); ry++ {
		for rx := x; rx < x+width && rx < len(saliencyMap[ry]); rx++ {
			totalScore += saliencyMap[ry][rx]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return totalScore / float64(count)
}

func (d *SubjectDetector) filterAndScoreRegions(regions []Region, imageWidth, imageHeight int) []Region {
	minArea := int(float64(imageWidth*imageHeight) * d.config.MinSubjectRatio)

	var filtered []Region
	for _, region := range regions {
		if region.Area() >= minArea {
			filtered = append(filtered, region)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return filtered
}
