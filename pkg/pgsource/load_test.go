package pgsource

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/sewertrace/pkg/network"
)

var edgeCols = []string{"id", "start_node", "end_node", "category", "function", "flow_type", "length", "diameter", "inversion"}

func setupMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	return mock
}

func expectNetwork(mock pgxmock.PgxPoolIface, withChannels bool) {
	mock.ExpectQuery(`FROM conduits`).
		WillReturnRows(pgxmock.NewRows(edgeCols).
			AddRow(int64(1), "A", "B", "01", "02", "02", 12.5, 300, "").
			AddRow(int64(2), "B", "INCONNU", "", "", "02", 3.0, 0, "2"))

	mock.ExpectQuery(`to_regclass`).WithArgs("channels").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(withChannels))
	if withChannels {
		mock.ExpectQuery(`FROM channels`).
			WillReturnRows(pgxmock.NewRows(edgeCols).
				AddRow(int64(1), "C", "A", "", "", "01", 4.0, 0, ""))
	}

	mock.ExpectQuery(`FROM liaisons`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "node", "entity_id"}).
			AddRow(int64(10), "B", "IND1").
			AddRow(int64(11), "", "IND2").
			AddRow(int64(12), "A", ""))

	mock.ExpectQuery(`FROM entities`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "attributes"}).
			AddRow("IND1", map[string]string{"name": "Tannery"}))

	mock.ExpectQuery(`FROM structures`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "network_type"}).
			AddRow("A", "02").
			AddRow("B", "01"))
}

func TestLoad_FullNetwork(t *testing.T) {
	mock := setupMock(t)
	defer mock.Close()
	expectNetwork(mock, true)

	src, err := Load(context.Background(), mock)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	conduits, err := src.Edges(network.Conduit, network.EdgeFilter{})
	require.NoError(t, err)
	require.Len(t, conduits, 2)
	assert.Equal(t, network.Known("A"), conduits[0].Start)
	assert.Equal(t, 12.5, conduits[0].Length)
	assert.Equal(t, 300, conduits[0].Diameter)
	assert.False(t, conduits[1].End.IsKnown(), "sentinel end should be unknown")
	assert.Equal(t, network.Code("2"), conduits[1].Inversion)

	assert.True(t, src.HasCollection(network.Channel))
	channels, err := src.Edges(network.Channel, network.EdgeFilter{})
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, network.Channel, channels[0].Collection)

	liaisons, err := src.Liaisons(network.LiaisonFilter{})
	require.NoError(t, err)
	require.Len(t, liaisons, 1, "liaisons without node or entity are dropped")
	assert.Equal(t, network.LiaisonID(10), liaisons[0].ID)

	entities, err := src.Entities(network.NewSet[network.EntityID]("IND1"))
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Tannery", entities[0].Attributes["name"])

	info, ok := src.Node("A")
	assert.True(t, ok)
	assert.Equal(t, network.FlowWastewater, info.NetworkType)
}

func TestLoad_WithoutChannels(t *testing.T) {
	mock := setupMock(t)
	defer mock.Close()
	expectNetwork(mock, false)

	src, err := Load(context.Background(), mock)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.False(t, src.HasCollection(network.Channel))
}

func TestLoad_QueryError(t *testing.T) {
	mock := setupMock(t)
	defer mock.Close()

	boom := errors.New("relation does not exist")
	mock.ExpectQuery(`FROM conduits`).WillReturnError(boom)
	mock.ExpectQuery(`to_regclass`).WithArgs("channels").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`FROM liaisons`).WillReturnRows(pgxmock.NewRows([]string{"id", "node", "entity_id"}))
	mock.ExpectQuery(`FROM entities`).WillReturnRows(pgxmock.NewRows([]string{"id", "attributes"}))
	mock.ExpectQuery(`FROM structures`).WillReturnRows(pgxmock.NewRows([]string{"id", "network_type"}))

	_, err := Load(context.Background(), mock)
	require.Error(t, err)

	var srcErr *network.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "conduit", srcErr.Layer)
	assert.ErrorIs(t, err, boom)
}

func TestLoad_DuplicateEdge(t *testing.T) {
	mock := setupMock(t)
	defer mock.Close()

	mock.ExpectQuery(`FROM conduits`).
		WillReturnRows(pgxmock.NewRows(edgeCols).
			AddRow(int64(1), "A", "B", "", "", "", 1.0, 0, "").
			AddRow(int64(1), "B", "C", "", "", "", 1.0, 0, ""))
	mock.ExpectQuery(`to_regclass`).WithArgs("channels").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`FROM liaisons`).WillReturnRows(pgxmock.NewRows([]string{"id", "node", "entity_id"}))
	mock.ExpectQuery(`FROM entities`).WillReturnRows(pgxmock.NewRows([]string{"id", "attributes"}))
	mock.ExpectQuery(`FROM structures`).WillReturnRows(pgxmock.NewRows([]string{"id", "network_type"}))

	_, err := Load(context.Background(), mock)
	assert.ErrorIs(t, err, network.ErrDuplicateEdge)
}
