// Package pgsource loads a sewer network from PostgreSQL into memory.
package pgsource

import (
	"context"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/sewertrace/pkg/network"
)

// Querier is the subset of pgxpool.Pool the loaders need
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const edgeColumns = `id, COALESCE(start_node, ''), COALESCE(end_node, ''),
	COALESCE(category, ''), COALESCE(function, ''), COALESCE(flow_type, ''),
	COALESCE(length, geometry_length, 0), COALESCE(diameter, 0), COALESCE(inversion, '')`

const (
	queryConduits = `SELECT ` + edgeColumns + ` FROM conduits ORDER BY id`
	queryChannels = `SELECT ` + edgeColumns + ` FROM channels ORDER BY id`
	queryHasTable = `SELECT to_regclass($1) IS NOT NULL`
	queryLiaisons = `SELECT id, COALESCE(node, ''), COALESCE(entity_id, '') FROM liaisons ORDER BY id`
	queryEntities = `SELECT id, COALESCE(attributes, '{}'::jsonb) FROM entities ORDER BY id`
	queryNodes    = `SELECT id, COALESCE(network_type, '') FROM structures ORDER BY id`
)

// snapshot is everything one Load reads, filled by concurrent loaders
type snapshot struct {
	conduits    []network.Edge
	channels    []network.Edge
	hasChannels bool
	liaisons    []network.Liaison
	entities    []network.Entity
	nodes       []network.NodeInfo
}

// Load reads every table concurrently and returns an in-memory source.
// Sentinel node spellings become unknown endpoints; liaisons without a
// known node or entity are dropped.
func Load(ctx context.Context, q Querier) (*network.MemorySource, error) {
	var snap snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.conduits, err = loadEdges(gctx, q, network.Conduit, queryConduits)
		return err
	})
	g.Go(func() error {
		ok, err := hasTable(gctx, q, "channels")
		if err != nil || !ok {
			return err
		}
		snap.hasChannels = true
		snap.channels, err = loadEdges(gctx, q, network.Channel, queryChannels)
		return err
	})
	g.Go(func() error {
		var err error
		snap.liaisons, err = loadLiaisons(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		snap.entities, err = loadEntities(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		snap.nodes, err = loadNodes(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return snap.source()
}

func (s *snapshot) source() (*network.MemorySource, error) {
	src := network.NewMemorySource()
	if s.hasChannels {
		src.EnableCollection(network.Channel)
	}
	for _, edges := range [][]network.Edge{s.conduits, s.channels} {
		for _, e := range edges {
			if err := src.AddEdge(e); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range s.entities {
		src.AddEntity(e)
	}
	for _, l := range s.liaisons {
		if err := src.AddLiaison(l); err != nil {
			return nil, err
		}
	}
	for _, n := range s.nodes {
		src.AddNode(n)
	}
	return src, nil
}

func hasTable(ctx context.Context, q Querier, table string) (bool, error) {
	var ok bool
	if err := q.QueryRow(ctx, queryHasTable, table).Scan(&ok); err != nil {
		return false, network.NewSourceError("has-table", table, err)
	}
	return ok, nil
}

func loadEdges(ctx context.Context, q Querier, c network.Collection, sql string) ([]network.Edge, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, network.NewSourceError("load-edges", c.String(), err)
	}
	defer rows.Close()

	var edges []network.Edge
	for rows.Next() {
		var (
			id                       int64
			start, end               string
			category, function, flow string
			length                   float64
			diameter                 int
			inversion                string
		)
		if err := rows.Scan(&id, &start, &end, &category, &function, &flow, &length, &diameter, &inversion); err != nil {
			return nil, network.NewSourceError("scan-edge", c.String(), err)
		}
		edges = append(edges, network.Edge{
			Collection: c,
			ID:         network.EdgeID(id),
			Start:      network.ParseEndpoint(start),
			End:        network.ParseEndpoint(end),
			Category:   network.Code(category),
			Function:   network.Code(function),
			FlowType:   network.Code(flow),
			Length:     length,
			Diameter:   diameter,
			Inversion:  network.Code(inversion),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, network.NewSourceError("load-edges", c.String(), err)
	}
	return edges, nil
}

func loadLiaisons(ctx context.Context, q Querier) ([]network.Liaison, error) {
	rows, err := q.Query(ctx, queryLiaisons)
	if err != nil {
		return nil, network.NewSourceError("load-liaisons", "liaisons", err)
	}
	defer rows.Close()

	var out []network.Liaison
	for rows.Next() {
		var (
			id           int64
			node, entity string
		)
		if err := rows.Scan(&id, &node, &entity); err != nil {
			return nil, network.NewSourceError("scan-liaison", "liaisons", err)
		}
		n, ok := network.ParseEndpoint(node).Get()
		if !ok || entity == "" {
			continue
		}
		out = append(out, network.Liaison{ID: network.LiaisonID(id), Node: n, Entity: network.EntityID(entity)})
	}
	if err := rows.Err(); err != nil {
		return nil, network.NewSourceError("load-liaisons", "liaisons", err)
	}
	return out, nil
}

func loadEntities(ctx context.Context, q Querier) ([]network.Entity, error) {
	rows, err := q.Query(ctx, queryEntities)
	if err != nil {
		return nil, network.NewSourceError("load-entities", "entities", err)
	}
	defer rows.Close()

	var out []network.Entity
	for rows.Next() {
		var (
			id    string
			attrs map[string]string
		)
		if err := rows.Scan(&id, &attrs); err != nil {
			return nil, network.NewSourceError("scan-entity", "entities", err)
		}
		out = append(out, network.Entity{ID: network.EntityID(id), Attributes: attrs})
	}
	if err := rows.Err(); err != nil {
		return nil, network.NewSourceError("load-entities", "entities", err)
	}
	return out, nil
}

func loadNodes(ctx context.Context, q Querier) ([]network.NodeInfo, error) {
	rows, err := q.Query(ctx, queryNodes)
	if err != nil {
		return nil, network.NewSourceError("load-nodes", "structures", err)
	}
	defer rows.Close()

	var out []network.NodeInfo
	for rows.Next() {
		var id, networkType string
		if err := rows.Scan(&id, &networkType); err != nil {
			return nil, network.NewSourceError("scan-node", "structures", err)
		}
		out = append(out, network.NodeInfo{ID: network.NodeID(id), NetworkType: network.Code(networkType)})
	}
	if err := rows.Err(); err != nil {
		return nil, network.NewSourceError("load-nodes", "structures", err)
	}
	return out, nil
}
