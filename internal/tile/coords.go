// Package tile enumerates Web Mercator tiles and expands tile URL templates.
package tile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Coords is a tile coordinate in the XYZ scheme.
type Coords struct {
	Z uint32
	X uint32
	Y uint32
}

// String returns the tile coordinate as "z{zoom}_x{x}_y{y}".
func (c Coords) String() string {
	return fmt.Sprintf("z%d_x%d_y%d", c.Z, c.X, c.Y)
}

// NewCoords creates a new Coords from zoom, x, y values.
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// ParseCoords parses a tile string like "z13_x4297_y2754".
func ParseCoords(s string) (Coords, error) {
	var c Coords
	_, err := fmt.Sscanf(s, "z%d_x%d_y%d", &c.Z, &c.X, &c.Y)
	if err != nil {
		return c, fmt.Errorf("invalid tile coordinate format: %s", s)
	}
	if c.X >= 1<<c.Z || c.Y >= 1<<c.Z {
		return c, fmt.Errorf("tile %s outside zoom %d", s, c.Z)
	}
	return c, nil
}

// span returns the tile column and row ranges covering b at zoom z.
func span(b orb.Bound, z int) (minX, maxX, minY, maxY uint32) {
	zoom := maptile.Zoom(z)
	minTile := maptile.At(orb.Point{b.Min.Lon(), b.Max.Lat()}, zoom)
	maxTile := maptile.At(orb.Point{b.Max.Lon(), b.Min.Lat()}, zoom)

	minX, maxX = minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY = minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return minX, maxX, minY, maxY
}

// TilesInBound returns every tile intersecting b for each zoom in
// [zoomMin, zoomMax], computed per zoom level.
func TilesInBound(b orb.Bound, zoomMin, zoomMax int) []Coords {
	tiles := make([]Coords, 0, TileCount(b, zoomMin, zoomMax))
	for z := zoomMin; z <= zoomMax; z++ {
		minX, maxX, minY, maxY := span(b, z)
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				tiles = append(tiles, NewCoords(uint32(z), x, y))
			}
		}
	}
	return tiles
}

// TileCount returns the number of tiles TilesInBound would return without
// allocating them.
func TileCount(b orb.Bound, zoomMin, zoomMax int) int {
	count := 0
	for z := zoomMin; z <= zoomMax; z++ {
		minX, maxX, minY, maxY := span(b, z)
		count += int(maxX-minX+1) * int(maxY-minY+1)
	}
	return count
}

// Subdomains used for {s} in tile templates.
var Subdomains = []string{"a", "b", "c"}

// ExpandURL fills a Leaflet-style tile template. {s} picks a subdomain
// deterministically from the tile so repeated requests hit the same host.
func ExpandURL(template string, c Coords) string {
	sub := Subdomains[int(c.X+c.Y)%len(Subdomains)]
	r := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(c.Z), 10),
		"{x}", strconv.FormatUint(uint64(c.X), 10),
		"{y}", strconv.FormatUint(uint64(c.Y), 10),
		"{-y}", strconv.FormatUint(uint64((1<<c.Z)-1-c.Y), 10),
		"{s}", sub,
	)
	return r.Replace(template)
}
