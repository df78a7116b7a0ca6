package booking

import (
	"github.com/salonbook/platform/services/booking-service/internal/availability"
)

func availabilityQuery(f *fixture) availability.Query {
	return availability.Query{TenantSlug: tenantSlg, ServiceID: f.service.ID, Date: testDate}
}

func labels(slots []availability.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Label)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
