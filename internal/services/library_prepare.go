package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/calcbridge-backend/internal/data/repos"
	types "github.com/yungbote/calcbridge-backend/internal/domain/library"
	"github.com/yungbote/calcbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

// CollectionView is a collection with its child links attached. Users is
// null for collections that are not shared.
type CollectionView struct {
	*types.Collection
	DataSources []uuid.UUID `json:"dataSources"`
	Users       []uuid.UUID `json:"users"`
}

// DataSourceView lists the caller-visible collections referencing a source.
type DataSourceView struct {
	*types.DataSource
	Collections []uuid.UUID `json:"collections"`
}

type LibraryPreparer interface {
	PrepareCollections(dbc dbctx.Context, rows []*types.Collection) ([]CollectionView, error)
	PrepareDataSources(dbc dbctx.Context, userID uuid.UUID, rows []*types.DataSource) ([]DataSourceView, error)
}

type libraryPreparer struct {
	log         *logger.Logger
	collections repos.CollectionRepo
	dataSources repos.DataSourceRepo
}

func NewLibraryPreparer(log *logger.Logger, collections repos.CollectionRepo, dataSources repos.DataSourceRepo) LibraryPreparer {
	return &libraryPreparer{
		log:         log.With("service", "LibraryPreparer"),
		collections: collections,
		dataSources: dataSources,
	}
}

// PrepareCollections issues one link query per relation regardless of how
// many parents there are.
func (p *libraryPreparer) PrepareCollections(dbc dbctx.Context, rows []*types.Collection) ([]CollectionView, error) {
	out := make([]CollectionView, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	var sharedIDs []uuid.UUID
	for _, c := range rows {
		ids = append(ids, c.ID)
		if c.Shared() {
			sharedIDs = append(sharedIDs, c.ID)
		}
	}

	dsLinks, err := p.collections.DataSourceLinks(dbc, ids)
	if err != nil {
		return nil, err
	}
	byCollection, leftover := partitionLinks(ids, dsLinks, func(l *types.CollectionDataSource) uuid.UUID { return l.CollectionID })
	if len(leftover) > 0 {
		p.log.Warn("Unassigned collection data source links", "count", len(leftover))
	}

	var byShared map[uuid.UUID][]*types.SharedCollectionUser
	if len(sharedIDs) > 0 {
		userLinks, err := p.collections.SharedUserLinks(dbc, sharedIDs)
		if err != nil {
			return nil, err
		}
		byShared, _ = partitionLinks(sharedIDs, userLinks, func(l *types.SharedCollectionUser) uuid.UUID { return l.CollectionID })
	}

	for _, c := range rows {
		view := CollectionView{Collection: c, DataSources: []uuid.UUID{}}
		for _, l := range byCollection[c.ID] {
			view.DataSources = append(view.DataSources, l.DataSourceID)
		}
		if c.Shared() {
			view.Users = []uuid.UUID{}
			for _, l := range byShared[c.ID] {
				view.Users = append(view.Users, l.UserID)
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func (p *libraryPreparer) PrepareDataSources(dbc dbctx.Context, userID uuid.UUID, rows []*types.DataSource) ([]DataSourceView, error) {
	out := make([]DataSourceView, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, d := range rows {
		ids = append(ids, d.ID)
	}
	links, err := p.dataSources.CollectionLinks(dbc, userID, ids)
	if err != nil {
		return nil, err
	}
	bySource, _ := partitionLinks(ids, links, func(l *types.CollectionDataSource) uuid.UUID { return l.DataSourceID })
	for _, d := range rows {
		view := DataSourceView{DataSource: d, Collections: []uuid.UUID{}}
		for _, l := range bySource[d.ID] {
			view.Collections = append(view.Collections, l.CollectionID)
		}
		out = append(out, view)
	}
	return out, nil
}

// partitionLinks assigns links to parents by foreign key. Each link is
// removed from the working set once assigned; whatever matched no parent is
// returned as leftover.
func partitionLinks[L any](parentIDs []uuid.UUID, links []L, fk func(L) uuid.UUID) (map[uuid.UUID][]L, []L) {
	assigned := make(map[uuid.UUID][]L, len(parentIDs))
	working := append([]L(nil), links...)
	for _, pid := range parentIDs {
		if len(working) == 0 {
			break
		}
		rest := working[:0]
		for _, l := range working {
			if fk(l) == pid {
				assigned[pid] = append(assigned[pid], l)
				continue
			}
			rest = append(rest, l)
		}
		working = rest
	}
	return assigned, working
}
