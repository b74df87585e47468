package facility

import (
	"math"
	"sort"
	"strings"

	"github.com/pretriage/pretriage/internal/catalog"
)

const earthRadiusKM = 6371.0

// Service is the static, read-only facility directory. The backing list is
// loaded from the catalog at startup and never mutated, so lookups need no
// locking.
type Service struct {
	facilities []catalog.Facility
}

func NewService(cat *catalog.Catalog) *Service {
	return &Service{facilities: cat.Facilities}
}

// Find returns facilities offering the specialty, optionally filtered by
// city. With coordinates the list is ordered by haversine distance (ties by
// name); without them insertion order is preserved and distance is omitted.
// The directory never ranks providers beyond distance.
func (s *Service) Find(specialtyID, city string, lat, lon *float64, limit int) []Entry {
	if limit <= 0 {
		limit = 5
	}

	var out []Entry
	for _, f := range s.facilities {
		if specialtyID != "" && !offers(f, specialtyID) {
			continue
		}
		if city != "" && !strings.EqualFold(f.City, city) {
			continue
		}
		e := Entry{Name: f.Name, Type: f.Type, Address: f.Address, City: f.City, Lat: f.Lat, Lon: f.Lon}
		if lat != nil && lon != nil && f.Lat != nil && f.Lon != nil {
			d := haversineKM(*lat, *lon, *f.Lat, *f.Lon)
			e.DistanceKM = &d
		}
		out = append(out, e)
	}

	if lat != nil && lon != nil {
		sort.SliceStable(out, func(i, j int) bool {
			di, dj := out[i].DistanceKM, out[j].DistanceKM
			switch {
			case di == nil && dj == nil:
				return out[i].Name < out[j].Name
			case di == nil:
				return false
			case dj == nil:
				return true
			case *di != *dj:
				return *di < *dj
			default:
				return out[i].Name < out[j].Name
			}
		})
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func offers(f catalog.Facility, specialtyID string) bool {
	for _, id := range f.SpecialtyIDs {
		if id == specialtyID {
			return true
		}
	}
	return false
}

// haversineKM computes the great-circle distance between two coordinates.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
