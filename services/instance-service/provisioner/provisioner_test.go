package provisioner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulated_Deterministic(t *testing.T) {
	sim := NewSimulated(0)
	ctx := context.Background()

	id1, err := sim.Provision(ctx, Spec{InstanceID: "4b0c1a52-8c1f-4a7e-9c41-2f3a5b6c7d8e"})
	require.NoError(t, err)
	id2, err := sim.Provision(ctx, Spec{InstanceID: "4b0c1a52-8c1f-4a7e-9c41-2f3a5b6c7d8e"})
	require.NoError(t, err)
	assert.Equal(t, "sim-4b0c1a528c1f", id1)
	assert.Equal(t, id1, id2)

	ip1, err := sim.AssignNetwork(ctx, id1)
	require.NoError(t, err)
	ip2, err := sim.AssignNetwork(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, ip1, ip2)
	assert.True(t, strings.HasPrefix(ip1, "10."), ip1)

	u1, err := sim.Usage(ctx, id1)
	require.NoError(t, err)
	u2, err := sim.Usage(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, u1, u2)
	assert.GreaterOrEqual(t, u1.CPU, 5)
	assert.Less(t, u1.CPU, 85)
	assert.GreaterOrEqual(t, u1.Memory, 10)
	assert.Less(t, u1.Memory, 90)
}

func TestSimulated_RejectsUnknownAction(t *testing.T) {
	sim := NewSimulated(0)

	err := sim.Power(context.Background(), "sim-1", "hibernate")
	assert.True(t, errors.Is(err, ErrUnknownAction))
	assert.NoError(t, sim.Power(context.Background(), "sim-1", ActionRestart))
}

func TestSimulated_DelayHonoursContext(t *testing.T) {
	sim := NewSimulated(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Provision(ctx, Spec{InstanceID: "abc"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPProvisioner(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/instances":
			var spec Spec
			_ = json.NewDecoder(r.Body).Decode(&spec)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "ext-" + spec.InstanceID})
		case r.Method == http.MethodPost && r.URL.Path == "/instances/ext-1/network":
			_ = json.NewEncoder(w).Encode(map[string]string{"ip_address": "203.0.113.10"})
		case r.Method == http.MethodPost && r.URL.Path == "/instances/ext-1/stop":
			w.WriteHeader(http.StatusAccepted)
		case r.Method == http.MethodGet && r.URL.Path == "/instances/ext-1/usage":
			_ = json.NewEncoder(w).Encode(Usage{CPU: 42, Memory: 65})
		case r.Method == http.MethodDelete && r.URL.Path == "/instances/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(srv.URL+"/", "secret-token", time.Second)
	ctx := context.Background()

	id, err := p.Provision(ctx, Spec{InstanceID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "ext-1", id)

	ip, err := p.AssignNetwork(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.10", ip)

	require.NoError(t, p.Power(ctx, id, ActionStop))

	u, err := p.Usage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Usage{CPU: 42, Memory: 65}, u)

	assert.NoError(t, p.Deprovision(ctx, "gone"))

	err = p.Deprovision(ctx, "ext-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.False(t, IsRejected(err))

	for _, h := range gotAuth {
		assert.Equal(t, "Bearer secret-token", h)
	}
}

func TestHTTPProvisioner_ClassifiesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instances":
			http.Error(w, "no capacity in region", http.StatusUnprocessableEntity)
		case "/instances/busy/network":
			http.Error(w, "slow down", http.StatusTooManyRequests)
		case "/instances/down/network":
			http.Error(w, "upstream", http.StatusBadGateway)
		case "/instances/blank/network":
			_ = json.NewEncoder(w).Encode(map[string]string{})
		}
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(srv.URL, "", time.Second)
	ctx := context.Background()

	_, err := p.Provision(ctx, Spec{InstanceID: "1"})
	assert.True(t, IsRejected(err), "4xx is final")

	_, err = p.AssignNetwork(ctx, "busy")
	require.Error(t, err)
	assert.False(t, IsRejected(err), "429 is retried")

	_, err = p.AssignNetwork(ctx, "down")
	require.Error(t, err)
	assert.False(t, IsRejected(err), "5xx is retried")

	_, err = p.AssignNetwork(ctx, "blank")
	assert.True(t, IsRejected(err))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Provision(canceled, Spec{InstanceID: "1"})
	require.Error(t, err)
	assert.False(t, IsRejected(err))
	assert.ErrorIs(t, err, context.Canceled)
}
