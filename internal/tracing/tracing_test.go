package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledIsNoop(t *testing.T) {
	closeFn, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, closeFn(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestSamplerClampsRatio(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1.5, want: "root:AlwaysOnSampler"},
		{ratio: 1, want: "root:AlwaysOnSampler"},
		{ratio: 0, want: "root:AlwaysOffSampler"},
		{ratio: -2, want: "root:AlwaysOffSampler"},
		{ratio: 0.25, want: "root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Contains(t, sampler(tt.ratio).Description(), tt.want, "ratio %v", tt.ratio)
	}
}

func TestServiceResourceCarriesAttributes(t *testing.T) {
	res := serviceResource(Config{ServiceName: "lsd", Attributes: map[string]string{"deployment.environment": "test"}})
	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "lsd", got["service.name"])
	assert.Equal(t, "test", got["deployment.environment"])
}
