package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

func benchResult(city string) models.WeatherResult {
	return models.WeatherResult{
		RequestedCityName:   city,
		ResolvedCityName:    city,
		Country:             "Testland",
		Temperature:         15.5,
		FetchedAt:           time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		LocalTimeAtLocation: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
	}
}

func BenchmarkInMemoryCache_Get_Hit(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	_ = c.Set(ctx, "Seattle", benchResult("Seattle"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, "Seattle")
	}
}

func BenchmarkInMemoryCache_Set(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	v := benchResult("Seattle")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, "Seattle", v)
	}
}

// BenchmarkInMemoryCache_ParallelGet measures read contention across many cached cities.
func BenchmarkInMemoryCache_ParallelGet(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	cities := make([]string, 64)
	for i := range cities {
		cities[i] = fmt.Sprintf("city-%d", i)
		_ = c.Set(ctx, cities[i], benchResult(cities[i]))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _, _ = c.Get(ctx, cities[i%len(cities)])
			i++
		}
	})
}

func BenchmarkInMemoryCache_Clear(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	v := benchResult("Seattle")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, "Seattle", v)
		_ = c.Clear(ctx)
	}
}
