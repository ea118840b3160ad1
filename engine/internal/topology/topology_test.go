package topology

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fede-Berga/satellite-routing/engine/models"
)

const sampleTopology = `{
  "networkx_obj": {
    "nodes": [
      {"id": "Rome", "type": "GROUD_STATION"},
      {"id": "iridium_0_0", "type": "LEO_SATELLITE", "plane": 0, "position_in_plane": 0},
      {"id": "iridium_0_1", "type": "LEO_SATELLITE", "plane": 0, "position_in_plane": 1},
      {"id": "Paris", "type": "GROUD_STATION"}
    ],
    "links": [
      {"source": "Rome", "target": "iridium_0_0", "length": 900.5},
      {"source": "iridium_0_0", "target": "iridium_0_1", "length": 4000},
      {"source": "iridium_0_1", "target": "Paris", "length": 850}
    ]
  }
}`

func TestDecodeMaterializesBothDirections(t *testing.T) {
	topo, err := Decode([]byte(sampleTopology))
	require.NoError(t, err)

	require.Equal(t, []string{"iridium_0_0", "iridium_0_1"}, topo.Satellites())
	require.Equal(t, []string{"Rome", "Paris"}, topo.GroundStations())

	l, ok := topo.Length("Rome", "iridium_0_0")
	require.True(t, ok)
	assert.Equal(t, 900.5, l)
	l, ok = topo.Length("iridium_0_0", "Rome")
	require.True(t, ok)
	assert.Equal(t, 900.5, l)

	n, ok := topo.Node("iridium_0_1")
	require.True(t, ok)
	assert.Equal(t, models.KindLeoSatellite, n.Kind)
	assert.Equal(t, 1, n.PositionInPlane)
}

func TestDecodeAdjacencyKeepsLinkOrder(t *testing.T) {
	topo, err := Decode([]byte(sampleTopology))
	require.NoError(t, err)

	adj := topo.Adj["iridium_0_0"]
	require.Len(t, adj, 2)
	assert.Equal(t, "Rome", adj[0].ID)
	assert.Equal(t, "iridium_0_1", adj[1].ID)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"networkx_obj": `,
		"missing graph":   `{}`,
		"unknown type":    `{"networkx_obj": {"nodes": [{"id": "x", "type": "BALLOON"}], "links": []}}`,
		"dangling link":   `{"networkx_obj": {"nodes": [{"id": "x", "type": "GROUD_STATION"}], "links": [{"source": "x", "target": "y", "length": 1}]}}`,
		"duplicate nodes": `{"networkx_obj": {"nodes": [{"id": "x", "type": "GROUD_STATION"}, {"id": "x", "type": "GROUD_STATION"}], "links": []}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			require.ErrorIs(t, err, ErrMalformedTopology)
		})
	}
}

func TestClientFetchTopology(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(sampleTopology))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/min_dist_topo_builder/iridium", "")
	at := time.Date(2023, 9, 12, 10, 0, 0, 0, time.UTC)
	topo, err := c.FetchTopology(context.Background(), at, []string{"Rome", "Paris"})
	require.NoError(t, err)
	require.Len(t, topo.Nodes, 4)
	assert.Contains(t, gotQuery, "cities=Rome%2CParis")
	assert.Contains(t, gotQuery, "2023-09-12+10%3A00%3A00+%2B0000")
}

func TestClientFetchTopologyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.FetchTopology(context.Background(), time.Now(), []string{"Rome"})
	require.ErrorIs(t, err, ErrFetch)
}

func TestClientFetchTrafficMatrix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "500000000", r.URL.Query().Get("total_volume_of_traffic"))
		_, _ = w.Write([]byte(`{"Rome": {"Paris": 125000.5, "Rome": 0}, "Paris": {"Rome": 90000}}`))
	}))
	defer srv.Close()

	c := NewClient("", srv.URL+"/traffic_matrix")
	tm, err := c.FetchTrafficMatrix(context.Background(), 500_000_000, []string{"Rome", "Paris"})
	require.NoError(t, err)
	assert.Equal(t, 125000.5, tm.Rate("Rome", "Paris"))
	assert.Equal(t, 90000.0, tm.Rate("Paris", "Rome"))
	assert.Equal(t, 0.0, tm.Rate("Rome", "Milan"))
}
