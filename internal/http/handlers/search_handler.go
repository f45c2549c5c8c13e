// README: Search handlers: one search per POST, deferred narration, tuning stats.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"scout/internal/http/middleware"
	"scout/internal/modules/intent"
	"scout/internal/modules/narration"
	"scout/internal/service"
	"scout/internal/types"
)

const (
	maxQueryRunes = 500
	searchTimeout = 10 * time.Second
)

// Searcher is satisfied by *service.SearchOrchestrator.
type Searcher interface {
	Search(ctx context.Context, q service.Query) (*service.SearchResponse, error)
	Assist(ctx context.Context, requestID string) (*narration.Output, error)
	Stats() service.Stats
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(s Searcher) *SearchHandler {
	return &SearchHandler{search: s}
}

type searchReq struct {
	Query         string           `json:"query"`
	SessionID     string           `json:"sessionId"`
	Filters       intent.Overrides `json:"filters"`
	Location      *types.Point     `json:"location"`
	Sort          string           `json:"sort"`
	View          string           `json:"view"`
	RegionCode    string           `json:"regionCode"`
	SkipNarration bool             `json:"skipNarration"`
}

// Search handles POST /api/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(c, http.StatusBadRequest, "missing query")
		return
	}
	if utf8.RuneCountInString(req.Query) > maxQueryRunes {
		writeError(c, http.StatusBadRequest, "query too long")
		return
	}
	if req.Location != nil && !validPoint(*req.Location) {
		writeError(c, http.StatusBadRequest, "invalid location")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	resp, err := h.search.Search(ctx, service.Query{
		Text:           req.Query,
		SessionID:      req.SessionID,
		UID:            middleware.CallerUID(c),
		Filters:        req.Filters,
		Location:       req.Location,
		Sort:           req.Sort,
		View:           req.View,
		RegionCode:     req.RegionCode,
		AcceptLanguage: acceptLanguage(c.GetHeader("Accept-Language")),
		SkipNarration:  req.SkipNarration,
	})
	if err != nil {
		writeSearchError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, resp)
}

// Assist handles GET /api/search/:requestId/assist.
func (h *SearchHandler) Assist(c *gin.Context) {
	id := c.Param("requestId")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing request id")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	out, err := h.search.Assist(ctx, id)
	if err != nil {
		writeSearchError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}

// Stats handles GET /debug/stats.
func (h *SearchHandler) Stats(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.search.Stats())
}

func validPoint(p types.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// acceptLanguage returns the caller's most preferred tag, or "".
func acceptLanguage(header string) string {
	if header == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}
