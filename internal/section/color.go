package section

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minesight/tilecore/pkg/core"
	"golang.org/x/image/colornames"
)

// ParseColor reads a CSS color: #rgb, #rrggbb, #rrggbbaa, rgb(), rgba() or a
// named color.
func ParseColor(s string) (core.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgba("):len(s)-1], 4)
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgb("):len(s)-1], 3)
	}
	if c, ok := colornames.Map[s]; ok {
		return core.Color{
			R: float64(c.R) / 255,
			G: float64(c.G) / 255,
			B: float64(c.B) / 255,
			A: float64(c.A) / 255,
		}, nil
	}
	return core.Color{}, fmt.Errorf("unrecognized color %q", s)
}

func parseHex(h string) (core.Color, error) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return core.Color{}, fmt.Errorf("invalid hex color #%s", h)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return core.Color{}, fmt.Errorf("invalid hex color #%s: %w", h, err)
	}
	return core.Color{
		R: float64(v>>24&0xff) / 255,
		G: float64(v>>16&0xff) / 255,
		B: float64(v>>8&0xff) / 255,
		A: float64(v&0xff) / 255,
	}, nil
}

func parseFunc(args string, n int) (core.Color, error) {
	parts := strings.Split(args, ",")
	if len(parts) != n {
		return core.Color{}, fmt.Errorf("expected %d color components, got %d", n, len(parts))
	}
	var ch [4]float64
	ch[3] = 1
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i < 3 {
			v, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
			if err != nil {
				return core.Color{}, fmt.Errorf("invalid color component %q: %w", p, err)
			}
			if strings.HasSuffix(p, "%") {
				v = v * 255 / 100
			}
			ch[i] = clamp01(v / 255)
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return core.Color{}, fmt.Errorf("invalid alpha %q: %w", p, err)
		}
		ch[3] = clamp01(v)
	}
	return core.Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
