package main

import (
	"context"
	"time"

	"github.com/salonbook/platform/libs/auth"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage/memstore"
)

const demoSlug = "demo-salon"

type demoService struct {
	name     string
	minutes  int
	price    float64
	category string
}

var demoServices = []demoService{
	{name: "Women's haircut", minutes: 60, price: 45, category: "Hair"},
	{name: "Men's haircut", minutes: 30, price: 25, category: "Hair"},
	{name: "Manicure", minutes: 45, price: 30, category: "Nails"},
}

// seedDemo loads one tenant with a default stylist working Monday to Saturday.
func seedDemo(ctx context.Context, store *memstore.Store, adminKey string) error {
	hash, err := auth.HashKey(adminKey)
	if err != nil {
		return err
	}
	tenant := store.AddTenant(model.Tenant{
		Slug:         demoSlug,
		BusinessName: "Demo Salon",
		IsActive:     true,
		AdminKeyHash: hash,
	})
	store.PutSettings(tenant.ID, model.BookingSettings{
		Timezone:                "Europe/Sofia",
		SlotStepMinutes:         15,
		MinNoticeMinutes:        60,
		MaxDaysAhead:            60,
		CancellationCutoffHours: 24,
		Currency:                model.DefaultCurrency,
	})
	for i, svc := range demoServices {
		minutes, price := svc.minutes, svc.price
		store.AddService(model.Service{
			TenantID:        tenant.ID,
			Name:            svc.name,
			DurationMinutes: &minutes,
			Price:           &price,
			Category:        svc.category,
			SortOrder:       i,
		})
	}

	staffID, err := store.CreateStaff(ctx, model.Staff{TenantID: tenant.ID, Name: "Ana", IsActive: true, IsDefault: true})
	if err != nil {
		return err
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		wh := model.WorkingHours{StaffID: staffID, Weekday: int(day), StartTime: "09:00", EndTime: "18:00"}
		if day == time.Sunday {
			wh = model.WorkingHours{StaffID: staffID, Weekday: int(day), StartTime: "00:00", EndTime: "00:00", IsClosed: true}
		}
		if err := store.UpsertWorkingHours(ctx, tenant.ID, wh); err != nil {
			return err
		}
	}
	return nil
}
