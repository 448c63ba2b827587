// Package admin serves read-only HTML pages for operators: one poll, or every poll
// newest first in keyset-paginated pages. A key given in the query string is carried
// into the paging link so the listing can be browsed without an Authorization header.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/countmein/backend/internal/middleware"
	"github.com/countmein/backend/internal/models"
	"github.com/countmein/backend/internal/polls"
	"github.com/countmein/backend/pkg/response"
	"github.com/countmein/backend/pkg/textutil"
)

// DefaultPageSize is the listing page size when none or an invalid one is requested.
const DefaultPageSize = 100

const timestampLayout = "Mon, 02 Jan '06, 15:04:05"

// PollReader is the read side of the poll repository.
type PollReader interface {
	GetByID(ctx context.Context, id int64) (*models.Poll, error)
	ListPage(ctx context.Context, before int64, limit int) ([]*models.Poll, error)
}

// UserReader looks up poll creators. A nil user means the creator was never seen.
type UserReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Handler renders the operator pages.
type Handler struct {
	polls  PollReader
	users  UserReader
	loc    *time.Location
	logger *zap.Logger
}

// NewHandler creates an admin handler. Timestamps are shown in loc.
func NewHandler(polls PollReader, users UserReader, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{polls: polls, users: users, loc: loc, logger: logger}
}

// Poll handles GET /poll/:id.
func (h *Handler) Poll(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.NotFound(c, "invalid poll id")
		return
	}
	ctx := c.Request.Context()
	p, err := h.polls.GetByID(ctx, id)
	if errors.Is(err, models.ErrPollNotFound) {
		response.NotFound(c, "invalid poll id")
		return
	}
	if err != nil {
		h.logger.Error("load poll", zap.Int64("poll_id", id), zap.Error(err))
		response.Internal(c, "failed to load poll")
		return
	}
	response.HTML(c, h.renderHTML(ctx, p))
}

// List handles GET /polls?before=<id>&limit=<n>.
func (h *Handler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = DefaultPageSize
	}
	before, err := strconv.ParseInt(c.Query("before"), 10, 64)
	if err != nil || before < 0 {
		before = 0
	}

	ctx := c.Request.Context()
	page, err := h.polls.ListPage(ctx, before, limit)
	if err != nil {
		h.logger.Error("list polls", zap.Int64("before", before), zap.Error(err))
		response.Internal(c, "failed to list polls")
		return
	}

	var sb strings.Builder
	for _, p := range page {
		sb.WriteString(h.renderHTML(ctx, p))
		sb.WriteString("\n\n<hr>\n\n")
	}
	if len(page) == limit {
		next := url.Values{}
		next.Set("before", strconv.FormatInt(page[len(page)-1].ID, 10))
		next.Set("limit", strconv.Itoa(limit))
		if key, ok := c.GetQuery(middleware.QueryOperatorKey); ok {
			next.Set(middleware.QueryOperatorKey, key)
		}
		fmt.Fprintf(&sb, `<p><a href="?%s">More</a></p>`, textutil.EscapeHTML(next.Encode()))
	}
	response.HTML(c, sb.String())
}

// renderHTML renders the poll text with a creator/date line after the title,
// turning line breaks into <br>.
func (h *Handler) renderHTML(ctx context.Context, p *models.Poll) string {
	text := polls.RenderText(p)
	details := fmt.Sprintf(" <small>by %s on %s</small>",
		textutil.EscapeHTML(h.describeAdmin(ctx, p.AdminID)),
		p.CreatedAt.In(h.loc).Format(timestampLayout))

	title, rest, _ := strings.Cut(text, "\n")
	text = title + details + "\n" + rest
	return "<p>" + strings.ReplaceAll(text, "\n", "<br>\n") + "</p>"
}

func (h *Handler) describeAdmin(ctx context.Context, adminID string) string {
	unknown := fmt.Sprintf("unknown (%s)", adminID)
	id, err := strconv.ParseInt(adminID, 10, 64)
	if err != nil {
		return unknown
	}
	u, err := h.users.GetByID(ctx, id)
	if err != nil {
		h.logger.Warn("load poll creator", zap.String("admin_id", adminID), zap.Error(err))
		return unknown
	}
	if u == nil {
		return unknown
	}
	return u.Description()
}
