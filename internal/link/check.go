package link

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/pimstore/internal/apperr"
	"github.com/starford/pimstore/internal/storeid"
)

// WalkStore is the store surface the consistency check needs.
type WalkStore[E Entry] interface {
	Getter[E]
	Walk(dir string) ([]storeid.Object, error)
	Exists(id storeid.ID) (bool, error)
}

type node struct {
	outgoing []storeid.ID
	incoming []storeid.ID
}

// network maps baseless IDs to their edges.
type network map[storeid.ID]*node

func (n network) node(id storeid.ID) *node {
	id = id.WithoutBase()
	nd, ok := n[id]
	if !ok {
		nd = &node{}
		n[id] = nd
	}
	return nd
}

func (n network) links(from, to storeid.ID) bool {
	nd, ok := n[from.WithoutBase()]
	if !ok {
		return false
	}
	return slices.ContainsFunc(nd.outgoing, to.Equal)
}

// Check rebuilds the link network of the whole store and verifies that every
// referenced entry exists and that every link is mirrored. It returns nil
// for a consistent store and a *ConsistencyError listing every finding of
// the first failing category otherwise; dead links are reported before
// one-directional links.
func Check[E Entry](s WalkStore[E], logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	nw, err := aggregate(s)
	if err != nil {
		return err
	}
	dead, err := deadLinks(s, nw, logger)
	if err != nil {
		return err
	}
	if len(dead) > 0 {
		return &ConsistencyError{Kind: ErrDeadLink, DeadLinks: dead}
	}
	if od := oneDirectional(nw, logger); len(od) > 0 {
		return &ConsistencyError{Kind: ErrOneDirectionalLink, OneDirectional: od}
	}
	return nil
}

func aggregate[E Entry](s WalkStore[E]) (network, error) {
	objs, err := s.Walk("")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}
	nw := network{}
	for _, obj := range objs {
		if obj.Kind != storeid.KindEntry {
			continue
		}
		e, err := s.Get(obj.ID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStoreRead, obj.ID, err)
		}
		links, err := Links(e)
		if err != nil {
			return nil, err
		}
		src := e.Location().WithoutBase()
		from := nw.node(src)
		for _, lk := range links {
			target := lk.Target().WithoutBase()
			from.outgoing = append(from.outgoing, target)
			to := nw.node(target)
			to.incoming = append(to.incoming, src)
		}
	}
	return nw, nil
}

func sortedKeys(nw network) []storeid.ID {
	keys := make([]storeid.ID, 0, len(nw))
	for id := range nw {
		keys = append(keys, id)
	}
	slices.SortFunc(keys, storeid.Compare)
	return keys
}

func deadLinks[E Entry](s WalkStore[E], nw network, logger *slog.Logger) ([]storeid.ID, error) {
	var dead []storeid.ID
	for _, id := range sortedKeys(nw) {
		_, err := s.Get(id)
		if errors.Is(err, apperr.ErrNotFound) {
			logger.Warn("link target not in store", "id", id.String())
			dead = append(dead, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStoreRead, id, err)
		}
		ok, err := s.Exists(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStoreRead, id, err)
		}
		if !ok {
			logger.Warn("link target in store but not on disk", "id", id.String())
			dead = append(dead, id)
		}
	}
	return dead, nil
}

func oneDirectional(nw network, logger *slog.Logger) []OneDirectional {
	var out []OneDirectional
	for _, x := range sortedKeys(nw) {
		nd := nw[x]
		for _, y := range nd.outgoing {
			if !nw.links(y, x) {
				out = append(out, OneDirectional{Source: x, Target: y})
			}
		}
		for _, y := range nd.incoming {
			if !nw.links(x, y) {
				out = append(out, OneDirectional{Source: y, Target: x})
			}
		}
	}
	slices.SortFunc(out, func(a, b OneDirectional) int {
		if c := storeid.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return storeid.Compare(a.Target, b.Target)
	})
	out = slices.CompactFunc(out, func(a, b OneDirectional) bool {
		return a.Source.Equal(b.Source) && a.Target.Equal(b.Target)
	})
	for _, o := range out {
		logger.Warn("one-directional link", "source", o.Source.String(), "target", o.Target.String())
	}
	return out
}
