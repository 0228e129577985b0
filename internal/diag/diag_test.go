package diag

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return zap.NewNop().Sugar()
}

func TestMetrics_ObserverAndHandler(t *testing.T) {
	m := NewMetrics()

	m.PollSucceeded("SN-1", 120*time.Millisecond)
	m.PollFailed("SN-1")
	m.AvailabilityChanged("SN-1", false)
	m.CommandResult("SN-1", nil)
	m.CommandResult("SN-1", errors.New("rejected"))
	m.SetWebsocketConnected(true)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `dreoverse_poll_total{sn="SN-1"} 2`)
	assert.Contains(t, body, `dreoverse_poll_errors_total{sn="SN-1"} 1`)
	assert.Contains(t, body, `dreoverse_device_available{sn="SN-1"} 0`)
	assert.Contains(t, body, `dreoverse_commands_total{result="error",sn="SN-1"} 1`)
	assert.Contains(t, body, `dreoverse_commands_total{result="ok",sn="SN-1"} 1`)
	assert.Contains(t, body, "dreoverse_websocket_connected 1")
}

func TestDiagnostics_Endpoint(t *testing.T) {
	m := NewMetrics()
	provider := func() Diagnostics {
		return Diagnostics{
			WebsocketConnected: true,
			MQTTConnected:      true,
			Devices: []DeviceDiagnostics{
				{SN: Redacted, Name: "Bedroom Fan", Model: "DR-HTF008S", DeviceType: "tower-fan", Entities: 4, Available: true, CoordinatorHasData: true},
			},
		}
	}

	srv := httptest.NewServer(NewServer(":0", m, provider, testLogger(t)).srv.Handler)
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/diagnostics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got Diagnostics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.WebsocketConnected)
	require.Len(t, got.Devices, 1)
	assert.Equal(t, Redacted, got.Devices[0].SN)
	assert.Equal(t, "Bedroom Fan", got.Devices[0].Name)
}
