package server

import (
	"math"
	"math/rand"
	"sort"

	"github.com/solarlune/resolv"
)

const (
	minPlatformWidth = 80
	maxPlatformWidth = 150
	pathStartGap     = 150
	minPathSteps     = 4
	maxPathSteps     = 8
	occupancyCell    = 20
	topBandMin       = 60 // 站上去再起跳能够进入计分带
	summitTries      = 4
	connectorTries   = 6
	tagPlatform      = "platform"
)

// jumpKinematics 由跳跃参数推导的间距约束
type jumpKinematics struct {
	jumpHeight    float64
	jumpTime      float64
	maxHorizontal float64
	minSpacing    float64
}

func deriveKinematics(cfg Config) jumpKinematics {
	h := cfg.JumpImpulse * cfg.JumpImpulse / (2 * cfg.Gravity)
	t := 2 * math.Abs(cfg.JumpImpulse) / cfg.Gravity
	return jumpKinematics{
		jumpHeight:    h,
		jumpTime:      t,
		maxHorizontal: cfg.MoveSpeed * t,
		minSpacing:    0.5 * h,
	}
}

// platformGen 一次性生成器：尽力而为，被拒绝的候选直接丢弃
type platformGen struct {
	cfg    Config
	rng    *rand.Rand
	k      jumpKinematics
	space  *resolv.Space
	placed []Platform
	// pathPlatforms 各路径已放置的平台，用于纵向推离
	pathPlatforms []Platform
	topMax        float64

	summits    int
	connectors int
}

// GeneratePlatforms 为新房间生成平台集合，第一个总是底部的整宽地面
func GeneratePlatforms(cfg Config, rng *rand.Rand) []Platform {
	return newPlatformGen(cfg, rng).run()
}

func newPlatformGen(cfg Config, rng *rand.Rand) *platformGen {
	k := deriveKinematics(cfg)
	return &platformGen{
		cfg:    cfg,
		rng:    rng,
		k:      k,
		space:  resolv.NewSpace(int(cfg.ScreenWidth), int(cfg.ScreenHeight), occupancyCell, occupancyCell),
		topMax: topBandMin + k.minSpacing,
	}
}

func (g *platformGen) run() []Platform {
	cfg := g.cfg
	ground := Platform{X: 0, Y: cfg.ScreenHeight - cfg.PlatformHeight, Width: cfg.ScreenWidth, Height: cfg.PlatformHeight}
	g.commit(ground)

	paths := g.walkPaths(ground)
	g.placeSummits(paths)
	g.placeConnectors()

	out := make([]Platform, len(g.placed))
	copy(out, g.placed)
	return out
}

func (g *platformGen) walkPaths(ground Platform) [][]Platform {
	starts := g.pathStarts(2 + g.rng.Intn(2))
	stepHeight := 1.4 * g.k.minSpacing
	count := int((ground.Y - g.topMax) / stepHeight)
	if count < minPathSteps {
		count = minPathSteps
	}
	if count > maxPathSteps {
		count = maxPathSteps
	}

	paths := make([][]Platform, 0, len(starts))
	for i, sx := range starts {
		bias := 1.0
		if i%2 == 1 {
			bias = -1
		}
		prevX, prevY := sx, ground.Y
		var path []Platform
		for step := 0; step < count; step++ {
			w := float64(minPlatformWidth + g.rng.Intn(maxPlatformWidth-minPlatformWidth+1))
			lo := g.k.minSpacing + 5
			hi := 0.85 * g.k.jumpHeight
			y := prevY - (lo + g.rng.Float64()*(hi-lo))
			if y < topBandMin {
				break
			}
			x := prevX + bias*g.rng.Float64()*0.4*g.k.maxHorizontal + (g.rng.Float64()-0.5)*40
			if x < 0 || x+w > g.cfg.ScreenWidth {
				bias = -bias
				x = clamp(x, 0, g.cfg.ScreenWidth-w)
			}

			c := Platform{X: x, Y: y, Width: w, Height: g.cfg.PlatformHeight}
			c.Y = g.nudge(c)
			placed, ok := g.tryPlace(c)
			if !ok {
				// 左右错开一个身位再试
				for _, shift := range []float64{w, -w} {
					alt := c
					alt.X = clamp(c.X+shift, 0, g.cfg.ScreenWidth-w)
					if placed, ok = g.tryPlace(alt); ok {
						break
					}
				}
			}
			if !ok {
				continue
			}
			path = append(path, placed)
			g.pathPlatforms = append(g.pathPlatforms, placed)
			prevX, prevY = placed.X, placed.Y
		}
		paths = append(paths, path)
	}
	return paths
}

// pathStarts 随机起点，排序后保证相邻间距 ≥150 并夹回屏幕内
func (g *platformGen) pathStarts(n int) []float64 {
	limit := g.cfg.ScreenWidth - maxPlatformWidth
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = g.rng.Float64() * limit
	}
	sort.Float64s(xs)
	for i := 1; i < n; i++ {
		if xs[i]-xs[i-1] < pathStartGap {
			xs[i] = xs[i-1] + pathStartGap
		}
	}
	if over := xs[n-1] - limit; over > 0 {
		for i := range xs {
			xs[i] -= over
		}
	}
	for i := range xs {
		xs[i] = clamp(xs[i], 0, limit)
	}
	return xs
}

// nudge 与纵向过近的路径平台拉开到最小间距（向上）
func (g *platformGen) nudge(c Platform) float64 {
	for _, pl := range g.pathPlatforms {
		if !overlapsX(c, pl) {
			continue
		}
		if math.Abs(c.Y-pl.Y) < g.k.minSpacing {
			c.Y = pl.Y - g.k.minSpacing
		}
	}
	return c.Y
}

// placeSummits 在每条路径最高点之上的顶部带再放一块
func (g *platformGen) placeSummits(paths [][]Platform) {
	for _, path := range paths {
		if len(path) == 0 {
			continue
		}
		top := path[len(path)-1]
		for _, pl := range path {
			if pl.Y < top.Y {
				top = pl
			}
		}
		// 顶部带内、且比路径最高点高出一次可跳达的间距
		lo := math.Max(topBandMin, top.Y-g.k.jumpHeight)
		hi := math.Min(g.topMax, top.Y-g.k.minSpacing)
		if hi < lo {
			continue
		}
		for try := 0; try < summitTries; try++ {
			w := float64(minPlatformWidth + g.rng.Intn(maxPlatformWidth-minPlatformWidth+1))
			y := lo + g.rng.Float64()*(hi-lo)
			x := clamp(top.X+(g.rng.Float64()-0.5)*0.6*g.k.maxHorizontal, 0, g.cfg.ScreenWidth-w)
			if _, ok := g.tryPlace(Platform{X: x, Y: y, Width: w, Height: g.cfg.PlatformHeight}); ok {
				g.summits++
				break
			}
		}
	}
}

// placeConnectors 在纵向间距位于 (minSpacing, jumpHeight] 的两块平台之间补 2~4 块过渡平台。
// 中间高度离两端都不足 minSpacing，所以先试水平中点，再放到两者水平范围之外
func (g *platformGen) placeConnectors() {
	want := 2 + g.rng.Intn(3)
	for try := 0; try < want*connectorTries && g.connectors < want; try++ {
		if len(g.placed) < 3 {
			return
		}
		// 下标 0 是地面，不参与
		a := g.placed[1+g.rng.Intn(len(g.placed)-1)]
		b := g.placed[1+g.rng.Intn(len(g.placed)-1)]
		sep := math.Abs(a.Y - b.Y)
		if sep <= g.k.minSpacing || sep > g.k.jumpHeight {
			continue
		}
		w := float64(minPlatformWidth + g.rng.Intn(maxPlatformWidth-minPlatformWidth+1))
		y := (a.Y + b.Y) / 2
		left := math.Min(a.X, b.X)
		right := math.Max(a.X+a.Width, b.X+b.Width)
		gap := g.rng.Float64() * 0.25 * g.k.maxHorizontal
		xs := []float64{
			(a.X+a.Width/2+b.X+b.Width/2)/2 - w/2,
			right + gap,
			left - gap - w,
		}
		if g.rng.Intn(2) == 1 {
			xs[1], xs[2] = xs[2], xs[1]
		}
		for _, x := range xs {
			c := Platform{X: clamp(x, 0, g.cfg.ScreenWidth-w), Y: y, Width: w, Height: g.cfg.PlatformHeight}
			if _, ok := g.tryPlace(c); ok {
				g.connectors++
				break
			}
		}
	}
}

// tryPlace 边界、最小纵向间距与占用网格三重检查，通过才落盘
func (g *platformGen) tryPlace(c Platform) (Platform, bool) {
	ground := g.placed[0]
	if c.X < 0 || c.X+c.Width > g.cfg.ScreenWidth || c.Y < topBandMin || c.Y > ground.Y-g.k.minSpacing {
		return c, false
	}
	for _, pl := range g.placed {
		if overlapsX(c, pl) && math.Abs(c.Y-pl.Y) < g.k.minSpacing {
			return c, false
		}
	}
	obj := resolv.NewObject(c.X, c.Y, c.Width, c.Height, tagPlatform)
	g.space.Add(obj)
	if obj.Check(0, 0, tagPlatform) != nil {
		g.space.Remove(obj)
		return c, false
	}
	g.placed = append(g.placed, c)
	return c, true
}

func (g *platformGen) commit(pl Platform) {
	g.space.Add(resolv.NewObject(pl.X, pl.Y, pl.Width, pl.Height, tagPlatform))
	g.placed = append(g.placed, pl)
}

func overlapsX(a, b Platform) bool {
	return a.X < b.X+b.Width && a.X+a.Width > b.X
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
