package viewmodel

import (
	"net/http"

	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/stats"
	"github.com/SlpAus/book-summaries-backend/internal/user"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	books *catalog.Service
	stats *stats.Service
}

func NewHandler(books *catalog.Service, st *stats.Service) *Handler {
	return &Handler{books: books, stats: st}
}

// ListBooks 返回书目列表的完整视图。
// 带有 q/tag/author/sort 参数时更新并保存筛选，否则恢复上次保存的筛选。
func (h *Handler) ListBooks(c *gin.Context) {
	ctx := c.Request.Context()
	userID := user.GetUserID(c)

	sel := h.books.Selection(ctx, userID)
	changed := false
	if q, ok := c.GetQuery("q"); ok {
		sel = sel.FilterByText(q)
		changed = true
	}
	if tag, ok := c.GetQuery("tag"); ok {
		sel = sel.FilterByTag(tag)
		changed = true
	}
	if author, ok := c.GetQuery("author"); ok {
		sel = sel.FilterByAuthor(author)
		changed = true
	}
	if raw, ok := c.GetQuery("sort"); ok {
		key, valid := catalog.ParseSortKey(raw)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sort 只能是 newest、oldest、popular 或 rated"})
			return
		}
		sel = sel.SortBy(key)
		changed = true
	}
	if changed {
		h.books.SaveSelection(ctx, userID, sel)
	}

	state := h.stats.GetState(ctx, userID)
	c.JSON(http.StatusOK, Build(state.Stats, state.Bookmarks, sel, h.books.Sorted(sel)))
}
