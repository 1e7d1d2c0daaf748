package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/middleware"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/export"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

// MutationResponse carries the written entity and the user-facing
// notification produced by the write.
type MutationResponse struct {
	Data         interface{}        `json:"data,omitempty"`
	Notification model.Notification `json:"notification"`
}

// BulkResponse reports per-id outcomes of a bulk request.
type BulkResponse struct {
	Results   []model.Outcome `json:"results"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

// ParseID reads the :id path parameter. On failure it writes the error
// response and returns false.
func ParseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid id", err))
		return uuid.Nil, false
	}
	return id, true
}

// Actor returns the authenticated actor. Routes are always mounted behind
// the auth middleware, so a missing actor is a wiring error.
func Actor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("no authenticated actor")))
	}
	return actor, ok
}

// BindView reads paging, sorting and filters of type F from the query
// string.
func BindView[F any](c *gin.Context, def query.Sort) (query.View[F], bool) {
	expandDates(c)
	var params model.ListParams
	var filters F
	if err := c.ShouldBindQuery(&params); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid paging parameters", err))
		return query.View[F]{}, false
	}
	if err := c.ShouldBindQuery(&filters); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid filter parameters", err))
		return query.View[F]{}, false
	}
	return model.View(params, filters, def), true
}

// dateParams lists the filter keys that also accept a bare calendar day.
// True marks an upper bound, which covers the whole day.
var dateParams = map[string]bool{
	"dateFrom":     false,
	"deliveryFrom": false,
	"dateTo":       true,
	"deliveryTo":   true,
}

// expandDates rewrites 2006-01-02 values of date filters to RFC 3339 so
// range bounds stay inclusive of the named day.
func expandDates(c *gin.Context) {
	q := c.Request.URL.Query()
	changed := false
	for key, upper := range dateParams {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			continue
		}
		if upper {
			day = day.Add(24*time.Hour - time.Nanosecond)
		}
		q.Set(key, day.Format(time.RFC3339Nano))
		changed = true
	}
	if changed {
		c.Request.URL.RawQuery = q.Encode()
	}
}

// BindJSON decodes the body into req.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return false
	}
	return true
}

// Version reads the expected entity version from If-Match or ?version=.
// Zero means the caller did not send one.
func Version(c *gin.Context) (int64, bool) {
	raw := strings.Trim(c.GetHeader("If-Match"), `W/"`)
	if raw == "" {
		raw = c.Query("version")
	}
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid version", err))
		return 0, false
	}
	return v, true
}

// RespondPage writes a page in the paginated envelope.
func RespondPage[T any](c *gin.Context, page query.Page[T]) {
	httputil.RespondWithPagination(c, page.Items, page.Page, page.PageSize, page.Total, page.TotalPages)
}

// RespondEntity writes a single entity with its version as ETag.
func RespondEntity(c *gin.Context, version int64, data interface{}) {
	c.Header("ETag", fmt.Sprintf(`"%d"`, version))
	httputil.RespondWithSuccess(c, data)
}

// RespondMutation writes a write result and its notification. The entity
// version is echoed in ETag for the next conditional request.
func RespondMutation(c *gin.Context, status int, version int64, data interface{}, n model.Notification) {
	if version > 0 {
		c.Header("ETag", fmt.Sprintf(`"%d"`, version))
	}
	c.JSON(status, httputil.Response{
		Success: true,
		Data:    MutationResponse{Data: data, Notification: n},
	})
}

func RespondBulk(c *gin.Context, outcomes []model.Outcome) {
	resp := BulkResponse{Results: outcomes}
	for _, o := range outcomes {
		if o.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	httputil.RespondWithSuccess(c, resp)
}

// SendArtifact streams an export file as an attachment.
func SendArtifact(c *gin.Context, art export.Artifact) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, art.FileName))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

// ExportFormat reads ?format=, defaulting to csv.
func ExportFormat(c *gin.Context) (export.Format, bool) {
	f, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		httputil.RespondWithError(c, err)
		return "", false
	}
	return f, true
}
