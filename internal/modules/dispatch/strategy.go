package dispatch

import (
	"math"
	"sort"
	"sync/atomic"

	"mf-eats-backend/internal/models"
)

// SelectionStrategy orders eligible drivers by preference for one order.
// The coordinator claims candidates in the returned order until one sticks,
// so a strategy never needs to worry about races; it only ranks.
type SelectionStrategy interface {
	Rank(order *models.Order, candidates []*models.Driver) []*models.Driver
}

// NearestDriver ranks by straight-line distance to the restaurant's side of
// the trip, using the order's delivery coordinates as a stand-in when the
// driver has no recent position. Drivers without any known position sort
// last.
type NearestDriver struct{}

func (NearestDriver) Rank(order *models.Order, candidates []*models.Driver) []*models.Driver {
	ranked := make([]*models.Driver, len(candidates))
	copy(ranked, candidates)

	if order.DeliveryLatitude == nil || order.DeliveryLongitude == nil {
		return ranked
	}
	lat, lon := *order.DeliveryLatitude, *order.DeliveryLongitude

	sort.SliceStable(ranked, func(i, j int) bool {
		return driverDistance(ranked[i], lat, lon) < driverDistance(ranked[j], lat, lon)
	})
	return ranked
}

func driverDistance(d *models.Driver, lat, lon float64) float64 {
	if d.CurrentLatitude == nil || d.CurrentLongitude == nil {
		return math.MaxFloat64
	}
	return haversineKm(*d.CurrentLatitude, *d.CurrentLongitude, lat, lon)
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// RoundRobin rotates through candidates so no single driver absorbs every
// assignment when positions are unknown.
type RoundRobin struct {
	cursor atomic.Uint64
}

func (r *RoundRobin) Rank(order *models.Order, candidates []*models.Driver) []*models.Driver {
	if len(candidates) == 0 {
		return nil
	}
	start := int(r.cursor.Add(1)-1) % len(candidates)
	ranked := make([]*models.Driver, 0, len(candidates))
	for i := 0; i < len(candidates); i++ {
		ranked = append(ranked, candidates[(start+i)%len(candidates)])
	}
	return ranked
}
