package service

import (
	"context"
	"time"

	"ultrasearch/internal/ipcproto"
	"ultrasearch/internal/query"
)

// Handle answers one decoded IPC request against the orchestrator,
// config store, and status snapshot. It implements ipcserver.Handler.
func (s *Service) Handle(ctx context.Context, req *ipcproto.Request) *ipcproto.Response {
	switch req.Kind {
	case ipcproto.RequestSearch:
		return s.handleSearch(ctx, req)
	case ipcproto.RequestStatus:
		return &ipcproto.Response{ID: req.ID, Status: s.buildStatus()}
	case ipcproto.RequestConfigGet:
		return s.handleConfigGet(req)
	case ipcproto.RequestConfigSet:
		return s.handleConfigSet(req)
	default:
		return &ipcproto.Response{ID: req.ID, Error: &ipcproto.Error{
			Kind:    ipcproto.ErrConfigInvalid,
			Message: "unrecognized request kind",
		}}
	}
}

func (s *Service) handleSearch(ctx context.Context, req *ipcproto.Request) *ipcproto.Response {
	if req.Search == nil {
		return &ipcproto.Response{ID: req.ID, Error: &ipcproto.Error{Kind: ipcproto.ErrConfigInvalid, Message: "missing search payload"}}
	}
	sr := req.Search
	deadline := time.Duration(sr.DeadlineMs) * time.Millisecond

	resp := s.orchestrator.Run(ctx, query.Request{
		Expr:     sr.Query,
		Mode:     sr.Mode,
		Limit:    sr.Limit,
		Offset:   sr.Offset,
		Deadline: deadline,
	})

	hits := make([]ipcproto.SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		hits = append(hits, ipcproto.SearchHit{
			DocKey:   uint64(r.DocKey),
			Score:    r.Score,
			Name:     r.Name,
			Path:     r.Path,
			Size:     r.Size,
			Modified: r.Modified,
			Ext:      r.Ext,
			Snippet:  r.Snippet,
		})
	}
	return &ipcproto.Response{ID: req.ID, Search: &ipcproto.SearchResponse{Hits: hits, Total: resp.Total, TimedOut: resp.TimedOut}}
}

func (s *Service) handleConfigGet(req *ipcproto.Request) *ipcproto.Response {
	if req.ConfigGet == nil {
		return &ipcproto.Response{ID: req.ID, Error: &ipcproto.Error{Kind: ipcproto.ErrConfigInvalid, Message: "missing config_get payload"}}
	}
	val, found := s.cfgStore.Load().Get(req.ConfigGet.Key)
	return &ipcproto.Response{ID: req.ID, ConfigGet: &ipcproto.ConfigGetResponse{Found: found, Value: val}}
}

func (s *Service) handleConfigSet(req *ipcproto.Request) *ipcproto.Response {
	if req.ConfigSet == nil {
		return &ipcproto.Response{ID: req.ID, Error: &ipcproto.Error{Kind: ipcproto.ErrConfigInvalid, Message: "missing config_set payload"}}
	}
	s.cfgStore.SetPending(req.ConfigSet.Key, req.ConfigSet.Value)
	return &ipcproto.Response{ID: req.ID, ConfigSet: &ipcproto.ConfigSetResponse{Applied: true}}
}
