package geo

import (
	"math"

	"droneDispatch/models"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by the Haversine fallback.
	EarthRadiusMeters = 6371008.8

	// WGS84 ellipsoid.
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
	wgs84B = wgs84A * (1 - wgs84F)

	degToRad = math.Pi / 180

	vincentyMaxIter = 200
	vincentyEpsilon = 1e-12
)

// HaversineMeters calculates the great-circle distance between two points on a
// spherical Earth in meters.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// DistanceMeters returns the geodesic distance between two points on the WGS84
// ellipsoid using Vincenty's inverse formula. Nearly antipodal points, where the
// iteration does not converge, fall back to Haversine.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}
	L := (lng2 - lng1) * degToRad
	U1 := math.Atan((1 - wgs84F) * math.Tan(lat1*degToRad))
	U2 := math.Atan((1 - wgs84F) * math.Tan(lat2*degToRad))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64
	converged := false
	for i := 0; i < vincentyMaxIter; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)
		sinSigma = math.Sqrt((cosU2*sinLambda)*(cosU2*sinLambda) +
			(cosU1*sinU2-sinU1*cosU2*cosLambda)*(cosU1*sinU2-sinU1*cosU2*cosLambda))
		if sinSigma == 0 {
			return 0
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha
		if cosSqAlpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		} else {
			// equatorial line
			cos2SigmaM = 0
		}
		C := wgs84F / 16 * cosSqAlpha * (4 + wgs84F*(4-3*cosSqAlpha))
		prev := lambda
		lambda = L + (1-C)*wgs84F*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-prev) < vincentyEpsilon {
			converged = true
			break
		}
	}
	if !converged {
		return HaversineMeters(lat1, lng1, lat2, lng2)
	}

	uSq := cosSqAlpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))
	return wgs84B * A * (sigma - deltaSigma)
}

// Distance is DistanceMeters for two model points.
func Distance(a, b models.Point) float64 {
	return DistanceMeters(a.Lat, a.Lng, b.Lat, b.Lng)
}

// IsWithinRadius checks if two coordinates are within radius meters of each other.
func IsWithinRadius(a, b models.Point, radius float64) bool {
	return Distance(a, b) <= radius
}

// DegreeSpan returns the latitude and longitude half-widths, in degrees, of a box
// that contains every point within radius meters of p. It is used as a store
// prefilter before the exact geodesic check.
func DegreeSpan(p models.Point, radius float64) (dLat, dLng float64) {
	const metersPerDegree = 111320.0
	// pad for ellipsoid flattening
	dLat = radius / metersPerDegree * 1.01
	if math.Abs(p.Lat)+dLat >= 90 {
		// the circle reaches a pole and spans every meridian
		return dLat, 180
	}
	// widest meridian offset of a spherical cap of angular radius dLat
	ratio := math.Sin(dLat*degToRad) / math.Cos(p.Lat*degToRad)
	if ratio >= 1 {
		return dLat, 180
	}
	dLng = math.Asin(ratio) / degToRad * 1.01
	if dLng > 180 {
		dLng = 180
	}
	return dLat, dLng
}

// Destination returns the point reached by travelling distance meters from p on the
// given bearing (degrees clockwise from north) over a spherical Earth.
func Destination(p models.Point, bearing, distance float64) models.Point {
	delta := distance / EarthRadiusMeters
	theta := bearing * degToRad
	phi1 := p.Lat * degToRad
	lambda1 := p.Lng * degToRad
	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	phi2 := math.Asin(sinPhi2)
	y := math.Sin(theta) * math.Sin(delta) * math.Cos(phi1)
	x := math.Cos(delta) - math.Sin(phi1)*sinPhi2
	lambda2 := lambda1 + math.Atan2(y, x)
	lng := math.Mod(lambda2/degToRad+540, 360) - 180
	return models.Point{Lat: phi2 / degToRad, Lng: lng}
}
