package tilegrid

import "github.com/wroge/wgs84"

// National Grid conversions: Airy 1830 transverse mercator with the
// OSGB36<->WGS84 seven-parameter Helmert shift, accurate to a few metres,
// which is far below a tile edge.
var (
	toNationalGrid   = wgs84.EPSG().Transform(int(WGS84), int(BritishNationalGrid))
	fromNationalGrid = wgs84.EPSG().Transform(int(BritishNationalGrid), int(WGS84))
)

// osgbForward converts WGS84 degrees to National Grid easting/northing.
func osgbForward(latDeg, lonDeg float64) (e, n float64) {
	e, n, _ = toNationalGrid(lonDeg, latDeg, 0)
	return e, n
}

// osgbInverse converts National Grid easting/northing to WGS84 degrees.
func osgbInverse(e, n float64) (latDeg, lonDeg float64) {
	lonDeg, latDeg, _ = fromNationalGrid(e, n, 0)
	return latDeg, lonDeg
}
