// Package http provides http transport for the admin read endpoints
package http

import (
	stdhttp "net/http"
	"strconv"
	"time"

	"tripwire/internal/modkit/httpkit"
	perr "tripwire/internal/platform/errors"
	ptime "tripwire/internal/platform/time"
	chandomain "tripwire/internal/services/channels/domain"
	discdomain "tripwire/internal/services/discovery/domain"
	itemdomain "tripwire/internal/services/items/domain"
	ledgerdomain "tripwire/internal/services/ledger/domain"
)

// Ports are the read surfaces the admin endpoints serve from
type Ports struct {
	Ledger   ledgerdomain.ReaderPort
	Quota    discdomain.QuotaPort
	Channels chandomain.ReaderPort
	Items    itemdomain.ReaderPort
}

// Register mounts the admin endpoints on the given router
func Register(r httpkit.Router, p Ports) {
	h := &handlers{p: p}

	// budget state for a day, all resources or one
	r.Get("/ledger", httpkit.Call(h.ledgerDay))
	r.Get("/ledger/{resource}", httpkit.Call(h.ledgerResource))

	// per strategy discovery headroom
	r.Get("/quotas", httpkit.Call(h.quotas))

	// channel reputation
	r.Get("/channels/{id}", httpkit.Call(h.channel))

	// item views, dead before {id} so the literal wins
	r.Get("/items/dead", httpkit.Call(h.deadLetters))
	r.Get("/items/{id}", httpkit.Call(h.item))
	r.Get("/videos/{videoID}", httpkit.Call(h.video))
}

type handlers struct{ p Ports }

// dayParam reads ?day=YYYY-MM-DD, defaulting to the current UTC day
func dayParam(r *stdhttp.Request) (time.Time, error) {
	raw := r.URL.Query().Get("day")
	if raw == "" {
		return ptime.UTCDay(time.Now().UTC()), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, perr.InvalidArgf("day must be formatted YYYY-MM-DD")
	}
	return day, nil
}

func (h *handlers) ledgerDay(r *stdhttp.Request) (any, error) {
	day, err := dayParam(r)
	if err != nil {
		return nil, err
	}
	return h.p.Ledger.StatesOn(r.Context(), day)
}

func (h *handlers) ledgerResource(r *stdhttp.Request) (any, error) {
	day, err := dayParam(r)
	if err != nil {
		return nil, err
	}
	return h.p.Ledger.StateFor(r.Context(), day, httpkit.URLParam(r, "resource"))
}

func (h *handlers) quotas(r *stdhttp.Request) (any, error) {
	return h.p.Quota.RemainingAll(r.Context())
}

func (h *handlers) channel(r *stdhttp.Request) (any, error) {
	return h.p.Channels.Get(r.Context(), httpkit.URLParam(r, "id"))
}

func (h *handlers) deadLetters(r *stdhttp.Request) (any, error) {
	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 50)
	items, total, err := h.p.Items.ListByStatus(r.Context(), itemdomain.StatusDeadLettered, page, size)
	if err != nil {
		return nil, err
	}
	return httpkit.List(items, total, page, size), nil
}

func (h *handlers) item(r *stdhttp.Request) (any, error) {
	return h.p.Items.Get(r.Context(), httpkit.URLParam(r, "id"))
}

func (h *handlers) video(r *stdhttp.Request) (any, error) {
	return h.p.Items.ByVideo(r.Context(), httpkit.URLParam(r, "videoID"))
}

func queryInt(r *stdhttp.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
