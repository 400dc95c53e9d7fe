package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/collabtext/collabtext/internal/document"
	"github.com/collabtext/collabtext/internal/document/service"
	"github.com/collabtext/collabtext/internal/models"
	"github.com/collabtext/collabtext/internal/users"
	"github.com/collabtext/collabtext/pkg/logger"
)

// Principal resolves the authenticated caller of a request.
type Principal func(c *gin.Context) (*models.User, error)

// ActiveUsers reports who is viewing a document.
type ActiveUsers interface {
	ActiveUsers(ctx context.Context, documentID int64) ([]string, error)
}

// RegisterDocumentRoutes mounts the document endpoints on rg (expected to be
// the authenticated /api group).
func RegisterDocumentRoutes(rg gin.IRoutes, svc service.Service, principal Principal, presence ActiveUsers) {
	rg.GET("/listDocuments", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	rg.GET("/getDocument/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		upd, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, upd)
	})

	rg.POST("/renameDocument", func(c *gin.Context) {
		var req document.RenameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.Rename(c.Request.Context(), req); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, req)
	})

	rg.POST("/newDocument", func(c *gin.Context) {
		var req document.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		creatorID := req.CreatorID
		if creatorID == 0 {
			u, err := principal(c)
			if err != nil {
				respondErr(c, err)
				return
			}
			creatorID = u.ID
		}
		d, err := svc.Create(c.Request.Context(), req.Name, creatorID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	rg.POST("/newDocument/:name", func(c *gin.Context) {
		u, err := principal(c)
		if err != nil {
			respondErr(c, err)
			return
		}
		d, err := svc.Create(c.Request.Context(), c.Param("name"), u.ID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	rg.DELETE("/deleteDocument/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if _, err := svc.Delete(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, id)
	})

	rg.GET("/downloadTxt/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		b, err := svc.Download(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=document.txt")
		c.Data(http.StatusOK, "text/plain; charset=utf-8", b)
	})

	rg.GET("/activeUsers/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		names, err := presence.ActiveUsers(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		c.JSON(http.StatusOK, names)
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := document.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return 0, false
	}
	return id, true
}

// ErrUnauthenticated is returned by a Principal when no caller can be resolved.
var ErrUnauthenticated = errors.New("unauthenticated")

func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUserNotFound), errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
