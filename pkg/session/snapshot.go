package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dd0wney/sewertrace/pkg/events"
	"github.com/dd0wney/sewertrace/pkg/logging"
	"github.com/dd0wney/sewertrace/pkg/network"
	"github.com/dd0wney/sewertrace/pkg/trace"
)

// Snapshot is the persisted form of a session
type Snapshot struct {
	ID               string              `json:"id"`
	Start            network.NodeID      `json:"start,omitempty"`
	Direction        string              `json:"direction,omitempty"`
	Filters          trace.Filters       `json:"filters"`
	Visits           []network.Visit     `json:"visits,omitempty"`
	SelectedConduits []network.EdgeID    `json:"selected_conduits,omitempty"`
	SelectedChannels []network.EdgeID    `json:"selected_channels,omitempty"`
	SelectedLiaisons []network.LiaisonID `json:"selected_liaisons,omitempty"`
	SelectedEntities []network.EntityID  `json:"selected_entities,omitempty"`
	DesignatedEntity network.EntityID    `json:"designated_entity,omitempty"`
	Note             string              `json:"note,omitempty"`
	SavedAt          time.Time           `json:"saved_at"`
}

// Store persists snapshots by name
type Store interface {
	Save(name string, v any) error
	Load(name string, v any) error
}

// Snapshot captures the recorded state and the current selections
func (s *Session) Snapshot(ctx context.Context) (*Snapshot, error) {
	edges, err := s.selected.SelectedEdges(ctx)
	if err != nil {
		return nil, s.fail(ctx, "snapshot", err)
	}
	liaisons, err := network.SelectedOf(ctx, s.selected.Liaisons)
	if err != nil {
		return nil, s.fail(ctx, "snapshot", network.NewSourceError("selected", "liaison", err))
	}
	entities, err := network.SelectedOf(ctx, s.selected.Entities)
	if err != nil {
		return nil, s.fail(ctx, "snapshot", network.NewSourceError("selected", "entity", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		ID:               s.id,
		Start:            s.start,
		Filters:          s.filters,
		Visits:           append([]network.Visit(nil), s.visits...),
		SelectedConduits: network.Sorted(edges.Of(network.Conduit)),
		SelectedChannels: network.Sorted(edges.Of(network.Channel)),
		SelectedLiaisons: network.Sorted(liaisons),
		SelectedEntities: network.Sorted(entities),
		DesignatedEntity: s.designated,
		Note:             s.note,
		SavedAt:          s.now().UTC(),
	}
	if s.start != "" {
		snap.Direction = s.direction.String()
	}
	return snap, nil
}

// Restore applies snap verbatim, replacing every selection layer
func (s *Session) Restore(ctx context.Context, snap *Snapshot) error {
	dir := trace.Upstream
	if snap.Direction != "" {
		d, err := trace.ParseDirection(snap.Direction)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		dir = d
	}

	edges := network.NewEdgeSets()
	edges[network.Conduit] = network.NewSet(snap.SelectedConduits...)
	edges[network.Channel] = network.NewSet(snap.SelectedChannels...)
	if err := s.selected.ReplaceEdges(ctx, edges); err != nil {
		return s.fail(ctx, "restore", err)
	}
	if err := network.Replace(ctx, s.selected.Liaisons, network.NewSet(snap.SelectedLiaisons...)); err != nil {
		return s.fail(ctx, "restore", network.NewSourceError("replace", "liaison", err))
	}
	if err := network.Replace(ctx, s.selected.Entities, network.NewSet(snap.SelectedEntities...)); err != nil {
		return s.fail(ctx, "restore", network.NewSourceError("replace", "entity", err))
	}

	s.mu.Lock()
	if snap.ID != "" {
		s.id = snap.ID
	}
	s.start, s.direction, s.filters = snap.Start, dir, snap.Filters
	s.visits = append([]network.Visit(nil), snap.Visits...)
	s.designated = snap.DesignatedEntity
	s.note = snap.Note
	s.lastNodes = make(network.Set[network.NodeID])
	s.mu.Unlock()

	s.logger.Info("session restored", logging.Count(len(snap.Visits)))
	s.emit(events.Event{
		Kind:     events.KindRestore,
		Node:     snap.Start,
		Edges:    len(snap.SelectedConduits) + len(snap.SelectedChannels),
		Entities: snap.SelectedEntities,
	})
	return nil
}

// Save writes a snapshot to store under name
func (s *Session) Save(ctx context.Context, store Store, name string) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := store.Save(name, snap); err != nil {
		return s.fail(ctx, "save", err)
	}
	return nil
}

// Load restores the snapshot saved under name. Store errors such as a
// missing session are returned unchanged.
func (s *Session) Load(ctx context.Context, store Store, name string) error {
	var snap Snapshot
	if err := store.Load(name, &snap); err != nil {
		return err
	}
	return s.Restore(ctx, &snap)
}
