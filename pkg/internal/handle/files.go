package handle

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/ingest"
	"github.com/yeisme/ingestvault/pkg/internal/types"
	"github.com/yeisme/ingestvault/pkg/log"
	"github.com/yeisme/ingestvault/pkg/metrics"
	"github.com/yeisme/ingestvault/pkg/rule"
)

// Files 文件提交与查询处理器.
type Files struct {
	gateway *ingest.Gateway
	status  *ingest.StatusService
	cfg     configs.IngestConfig
}

// NewFiles 创建文件处理器.
func NewFiles(gateway *ingest.Gateway, status *ingest.StatusService, cfg configs.IngestConfig) *Files {
	return &Files{gateway: gateway, status: status, cfg: cfg}
}

// Upload 批量提交文件，每个文件一条结果，顺序与上传顺序一致.
//
//	@Summary		提交导入文件
//	@Description	multipart 字段 files 或 files[]，每个文件独立去重、校验表头并排队
//	@Tags			文件导入
//	@Accept			multipart/form-data
//	@Produce		json
//	@Success		200	{object}	types.SubmitResponse
//	@Failure		400	{object}	map[string]string	"没有文件"
//	@Router			/api/v1/files/upload [post]
func (h *Files) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required: " + err.Error()})
		return
	}

	defer func() { _ = form.RemoveAll() }()

	headers := slices.Concat(form.File["files"], form.File["files[]"])
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	results := make([]types.SubmitResult, len(headers))

	var (
		uploads []ingest.Upload
		slots   []int
	)

	for i, fh := range headers {
		if reason := h.admit(fh); reason != "" {
			results[i] = types.SubmitResult{FileName: fh.Filename, Outcome: types.OutcomeRejected, Message: reason}
			metrics.IngestSubmissions.WithLabelValues(string(types.OutcomeRejected)).Inc()

			continue
		}

		uploads = append(uploads, ingest.Upload{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
		slots = append(slots, i)
	}

	for j, res := range h.gateway.SubmitAll(c.Request.Context(), uploads) {
		results[slots[j]] = res
	}

	c.JSON(http.StatusOK, types.SubmitResponse{Results: results})
}

// admit 在读取内容前按扩展名与声明的大小拒绝，通过时返回空字符串.
func (h *Files) admit(fh *multipart.FileHeader) string {
	if err := ingest.CheckExtension(fh.Filename, h.cfg.AllowedExtensions); err != nil {
		return err.Error()
	}

	if fh.Size > h.cfg.MaxFileSize() {
		return fmt.Sprintf("%s: file exceeds %d MB", fh.Filename, h.cfg.MaxFileSizeMB)
	}

	return ""
}

// List 按创建时间倒序列出文件.
//
//	@Summary	文件列表
//	@Tags		文件导入
//	@Produce	json
//	@Param		status	query		string	false	"按状态过滤"
//	@Param		limit	query		int		false	"分页大小"
//	@Param		offset	query		int		false	"偏移"
//	@Success	200		{object}	types.ListFilesResponse
//	@Router		/api/v1/files [get]
func (h *Files) List(c *gin.Context) {
	var req types.ListFilesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := rule.Check(&req); err != nil {
		l := log.Logger()
		l.Warn().Err(err).Msg("invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "fields": rule.Errors(err)})

		return
	}

	resp, err := h.status.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "list files")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Status 查询单个文件的导入进度.
//
//	@Summary	导入进度
//	@Tags		文件导入
//	@Produce	json
//	@Param		id	path		int	true	"文件记录 id"
//	@Success	200	{object}	types.FileStatus
//	@Failure	404	{object}	map[string]string
//	@Router		/api/v1/files/{id}/status [get]
func (h *Files) Status(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	view, err := h.status.GetStatus(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err, "file "+c.Param("id"))
		return
	}

	c.JSON(http.StatusOK, view)
}

// Details 按业务键查询明细.
func (h *Files) Details(c *gin.Context) {
	key := strings.TrimSpace(c.Query("unique_key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unique_key is required"})
		return
	}

	resp, err := h.status.LookupByKey(c.Request.Context(), key)
	if err != nil {
		respondError(c, err, "unique_key "+key)
		return
	}

	c.JSON(http.StatusOK, resp)
}
