package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

type clientCount int

func (c clientCount) ClientCount() int { return int(c) }

func TestReadinessCheck(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	analyst := &MockAnalyst{}
	analyst.On("Available").Return(false)

	hs := NewHealthService("1.2.3", "", HealthDeps{
		DataDir:   f.paths.DataDir,
		Datasets:  f.datasets,
		ImportLog: f.imports,
		Hub:       clientCount(2),
		Narrative: analyst,
	}, discardLogger())

	status := hs.ReadinessCheck(ctx)
	assert.Equal(t, StatusReady, status.Status)
	assert.Equal(t, StatusDisabled, status.Services["narrative"].Status)
	assert.Equal(t, "2 clients connected", status.Services["websocket"].Message)

	broken := NewHealthService("1.2.3", "", HealthDeps{
		DataDir:   f.paths.DataDir,
		Datasets:  f.datasets,
		ImportLog: pingFunc(func(context.Context) error { return errors.New("disk I/O error") }),
	}, discardLogger())
	status = broken.ReadinessCheck(ctx)
	assert.Equal(t, StatusNotReady, status.Status)
	assert.Contains(t, status.Services["imports"].Message, "disk I/O error")
}

func TestLivenessAndVersion(t *testing.T) {
	hs := NewHealthService("1.2.3", "2026-10-01", HealthDeps{}, nil)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	v := hs.Version()
	assert.Equal(t, "1.2.3", v["version"])
	assert.Equal(t, "2026-10-01", v["build_time"])

	assert.Equal(t, StatusNotReady, hs.ReadinessCheck(context.Background()).Status, "no dataset store")
}
