package client

import (
	"context"
	"testing"
	"time"
)

const benchBody = `{
	"request": {"type": "City", "query": "London, United Kingdom"},
	"location": {"name": "London", "country": "United Kingdom", "localtime": "2024-01-01 10:00"},
	"current": {"temperature": 5, "weather_descriptions": ["Overcast"]}
}`

// BenchmarkClient_BuildRequest benchmarks HTTP request construction.
func BenchmarkClient_BuildRequest(b *testing.B) {
	client, _ := NewWeatherstackClient("test-api-key", "http://api.weatherstack.com/current", 2*time.Second)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = client.buildRequest(ctx, "London")
	}
}

// BenchmarkClient_Decode benchmarks decoding a provider body into a record.
func BenchmarkClient_Decode(b *testing.B) {
	client, _ := NewWeatherstackClient("test-api-key", "http://api.weatherstack.com/current", 2*time.Second)
	body := []byte(benchBody)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = client.decode(body, "London")
	}
}
