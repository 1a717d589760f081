package liaison

import (
	"context"
	"testing"

	"github.com/dd0wney/sewertrace/pkg/network"
	nt "github.com/dd0wney/sewertrace/pkg/network/networktest"
	"github.com/dd0wney/sewertrace/pkg/topology"
)

func newResolver(t *testing.T) (*Resolver, network.Selections) {
	t.Helper()
	src := nt.Build(
		[]network.Edge{nt.Edge(1, "A", "B"), nt.Edge(2, "B", "C")},
		network.Liaison{ID: 10, Node: "A", Entity: "IND1"},
		network.Liaison{ID: 11, Node: "B", Entity: "IND1"},
		network.Liaison{ID: 12, Node: "B", Entity: "IND2"},
		network.Liaison{ID: 13, Node: "C", Entity: "IND3"},
	)
	src.AddEntity(network.Entity{ID: "IND1", Attributes: map[string]string{"name": "Tannery"}})
	src.AddEntity(network.Entity{ID: "IND2", Attributes: map[string]string{"name": "Dairy"}})

	sel := network.NewMemorySelections()
	return NewResolver(topology.NewIndex(src, src), src, sel), sel
}

func TestLookups(t *testing.T) {
	r, _ := newResolver(t)

	tests := []struct {
		name     string
		nodes    network.Set[network.NodeID]
		liaisons network.Set[network.LiaisonID]
		entities network.Set[network.EntityID]
	}{
		{"empty", nil, network.NewSet[network.LiaisonID](), network.NewSet[network.EntityID]()},
		{"unknown node", network.NewSet[network.NodeID]("Z"), network.NewSet[network.LiaisonID](), network.NewSet[network.EntityID]()},
		{"single", network.NewSet[network.NodeID]("A"), network.NewSet[network.LiaisonID](10), network.NewSet[network.EntityID]("IND1")},
		{"shared entity", network.NewSet[network.NodeID]("A", "B"), network.NewSet[network.LiaisonID](10, 11, 12), network.NewSet[network.EntityID]("IND1", "IND2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			liaisons, entities, err := r.EntitiesForNodes(tt.nodes)
			if err != nil {
				t.Fatalf("EntitiesForNodes failed: %v", err)
			}
			if !liaisons.Equal(tt.liaisons) {
				t.Errorf("liaisons = %v, want %v", network.Sorted(liaisons), network.Sorted(tt.liaisons))
			}
			if !entities.Equal(tt.entities) {
				t.Errorf("entities = %v, want %v", network.Sorted(entities), network.Sorted(tt.entities))
			}
		})
	}
}

func TestEntitiesForLiaisons_SkipsUnknown(t *testing.T) {
	r, _ := newResolver(t)

	got, err := r.EntitiesForLiaisons(network.NewSet[network.LiaisonID](13, 99))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(network.NewSet[network.EntityID]("IND3")) {
		t.Errorf("EntitiesForLiaisons = %v", got)
	}
}

func TestLiaisonsForEntity(t *testing.T) {
	r, _ := newResolver(t)

	ids, nodes, err := r.LiaisonsForEntity("IND1")
	if err != nil {
		t.Fatal(err)
	}
	if !ids.Equal(network.NewSet[network.LiaisonID](10, 11)) {
		t.Errorf("liaisons = %v", network.Sorted(ids))
	}
	if !nodes.Equal(network.NewSet[network.NodeID]("A", "B")) {
		t.Errorf("nodes = %v", network.Sorted(nodes))
	}

	ids, nodes, _ = r.LiaisonsForEntity("NOBODY")
	if len(ids) != 0 || len(nodes) != 0 {
		t.Errorf("unknown entity gave %v %v", ids, nodes)
	}
}

func TestSelectForNodes_Replaces(t *testing.T) {
	ctx := context.Background()
	r, sel := newResolver(t)

	_ = sel.Liaisons.Select(ctx, network.NewSet[network.LiaisonID](13))
	_ = sel.Entities.Select(ctx, network.NewSet[network.EntityID]("IND3"))

	entities, err := r.SelectForNodes(ctx, network.NewSet[network.NodeID]("B"))
	if err != nil {
		t.Fatal(err)
	}
	if !entities.Equal(network.NewSet[network.EntityID]("IND1", "IND2")) {
		t.Errorf("returned entities = %v", network.Sorted(entities))
	}

	liaisons, _ := sel.Liaisons.Selected(ctx)
	if !liaisons.Equal(network.NewSet[network.LiaisonID](11, 12)) {
		t.Errorf("selected liaisons = %v, previous selection should be cleared", network.Sorted(liaisons))
	}
	selected, _ := sel.Entities.Selected(ctx)
	if !selected.Equal(entities) {
		t.Errorf("selected entities = %v", network.Sorted(selected))
	}
}

func TestAddForNodes_Keeps(t *testing.T) {
	ctx := context.Background()
	r, sel := newResolver(t)

	_ = sel.Liaisons.Select(ctx, network.NewSet[network.LiaisonID](13))
	if _, err := r.AddForNodes(ctx, network.NewSet[network.NodeID]("A")); err != nil {
		t.Fatal(err)
	}

	liaisons, _ := sel.Liaisons.Selected(ctx)
	if !liaisons.Equal(network.NewSet[network.LiaisonID](10, 13)) {
		t.Errorf("selected liaisons = %v", network.Sorted(liaisons))
	}
}

func TestDetails(t *testing.T) {
	r, _ := newResolver(t)

	ents, err := r.Details(network.NewSet[network.EntityID]("IND2", "IND1", "IND3"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 2 || ents[0].ID != "IND1" || ents[1].Attributes["name"] != "Dairy" {
		t.Errorf("Details = %v", ents)
	}

	if ents, _ := r.Details(nil); len(ents) != 0 {
		t.Errorf("Details(nil) = %v", ents)
	}
}
