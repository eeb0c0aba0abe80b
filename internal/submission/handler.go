package submission

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/user"
	"github.com/gin-gonic/gin"
)

const submittedMessage = "Summary submitted successfully. It will be reviewed before being published."

type Handler struct {
	searcher *Searcher
	svc      *Service
}

func NewHandler(searcher *Searcher, svc *Service) *Handler {
	return &Handler{searcher: searcher, svc: svc}
}

// Search 处理 GET /api/book/search?query=&limit=
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("query")
	limit, _ := strconv.Atoi(c.Query("limit"))

	results, err := h.searcher.Search(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}

// Details 处理 GET /api/book/details?id=&source=&is_work=
func (h *Handler) Details(c *gin.Context) {
	id, source := c.Query("id"), c.Query("source")
	if id == "" || source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Book ID and source are required"})
		return
	}
	isWork := !strings.EqualFold(c.DefaultQuery("is_work", "true"), "false")

	details, err := h.searcher.Details(c.Request.Context(), source, id, isWork)
	if err != nil {
		logger.Warnf("查询书籍详情失败: %v", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	c.JSON(http.StatusOK, details)
}

// Categories 处理 GET /api/categories
func (h *Handler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, Categories)
}

// ByCategory 处理 GET /api/books/category?code=&page=&limit=
// 外部服务失败时仍返回空的一页。
func (h *Handler) ByCategory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.searcher.ByCategory(c.Request.Context(), c.Query("code"), page, limit)
	if errors.Is(err, ErrNoCategoryCode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Errorf("%v", err)
	}

	if len(result.Results) > 0 {
		ids := make([]string, len(result.Results))
		for i, b := range result.Results {
			ids[i] = b.ID
		}
		submitted, err := h.svc.SubmittedBookIDs(c.Request.Context(), ids)
		if err != nil {
			logger.Warnf("%v", err)
		}
		for i := range result.Results {
			result.Results[i].HasSummary = submitted[result.Results[i].ID]
		}
	}
	c.JSON(http.StatusOK, result)
}

// SubmitSummary 处理 POST /api/book/submit-summary
func (h *Handler) SubmitSummary(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}

	sub, err := h.svc.Submit(c.Request.Context(), user.GetUserID(c), req)
	switch {
	case errors.Is(err, ErrEmptySummary), errors.Is(err, ErrNoBook), errors.Is(err, ErrInvalidLanguage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.Errorf("保存摘要投稿失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error submitting summary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": submittedMessage, "id": sub.ID})
}
