// Package domain models ensemble precipitation forecast grids and the
// operations that collapse and color them.
//
// # Data Source
//
// Forecasts come from a stochastic ensemble: each realization (ensemble
// member) is one plausible precipitation field. The upstream producer writes
// one NetCDF file per realization per forecast hour, named
//
//	real-<realization>-t-<hour>.nc  →  e.g. "real-3-t-2024-04-26T15.nc"
//
// alongside a metadata.json describing the valid ranges:
//
//	{"real_min": 1, "real_max": 21, "hour_min": "2024-04-26T00", "hour_max": "2024-05-01T00"}
//
// Realization indices lie in [real_min, real_max). Hours lie in
// [hour_min, hour_max).
//
// # Time Labels
//
// Hours are identified by a [TimeLabel]: an ISO-8601 UTC timestamp truncated
// to the hour, e.g. "2024-04-26T15". Labels of this fixed layout sort
// lexically in time order, which is what makes them usable as cache keys and
// range bounds without parsing.
//
// # Grid Layout
//
// A [Grid] is row-major with rows along the NetCDF "y" dimension and columns
// along "x". Row 0 is the southern edge of the dataset, so rendering flips
// rows: grid row 0 becomes the bottom row of the image.
//
// Precipitation is in millimetres per hour. Missing cells are NaN.
//
// # Aggregation Modes
//
//	MEAN   sum of non-NaN values / number of realizations (NaN shrinks the
//	       numerator only)
//	MAX    last value above the smallest positive float64
//	MIN    last value below the largest finite float64
//	REAL1  realization 1, unmodified
//	NONE   empty grid, no fetch
//
// MAX and MIN are inherited from the viewer this service backs: each value is
// compared with the fixed seed rather than the running extremum, so the last
// realization that beats the seed wins. A cell whose values never beat the
// seed (all NaN, or all <= 5e-324 for MAX, e.g. a dry cell of zeros) stays
// unset and is reported as NaN. This is
// relied upon by downstream consumers and is deliberately not corrected.
//
// # Color Scale
//
// Values map linearly from [0, 132] mm onto a four-stop gradient
// (transparent → yellow → red → black) interpolated in CIE Lab. Values
// outside the domain extrapolate the nearest gradient segment; channels that
// leave the 8-bit range wrap instead of saturating. NaN cells render as the
// scale's no-data color #cccccc.
package domain
