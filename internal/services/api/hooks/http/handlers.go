// Package http provides http transport for webhook push delivery
package http

import (
	stdhttp "net/http"

	"tripwire/internal/modkit/httpkit"
	"tripwire/internal/services/api/hooks/domain"
	discdomain "tripwire/internal/services/discovery/domain"
	fbdomain "tripwire/internal/services/feedback/domain"
)

// Ports are the intake surfaces pushed payloads land on
type Ports struct {
	Ingest  discdomain.IngestPort
	Results fbdomain.IntakePort
}

// Register mounts the webhook endpoints on the given router
func Register(r httpkit.Router, p Ports) {
	h := &handlers{p: p}

	r.Post("/discovered", httpkit.JSON(h.discovered))
	r.Post("/results", httpkit.JSON(h.results))
}

type handlers struct{ p Ports }

func (h *handlers) discovered(r *stdhttp.Request, in domain.DiscoveredInput) (any, error) {
	// pushed candidates count against tracking unless the payload says otherwise
	strategy := discdomain.StrategyTracking
	if in.Strategy != "" {
		s, err := discdomain.ParseStrategy(in.Strategy)
		if err != nil {
			return nil, err
		}
		strategy = s
	}

	c := discdomain.Candidate{
		VideoID:      in.VideoID,
		ChannelID:    in.ChannelID,
		Title:        in.Title,
		DurationSecs: in.DurationSecs,
		Views:        in.Views,
		KeywordHits:  in.KeywordHits,
		Strategy:     strategy,
	}
	if in.PublishedAt != nil {
		c.PublishedAt = *in.PublishedAt
	}

	created, err := h.p.Ingest.Ingest(r.Context(), c)
	if err != nil {
		return nil, err
	}
	out := domain.DiscoveredOut{VideoID: in.VideoID, Created: created}
	if created {
		return httpkit.Created(out), nil
	}
	return out, nil
}

func (h *handlers) results(r *stdhttp.Request, in domain.ResultInput) (any, error) {
	if err := h.p.Results.Record(r.Context(), in.VideoID, in.Violation); err != nil {
		return nil, err
	}
	return domain.ResultOut{VideoID: in.VideoID, Queued: true}, nil
}
