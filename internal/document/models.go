package document

import (
	"strconv"
	"time"

	"github.com/collabtext/collabtext/internal/models"
)

// Document is the metadata record for a shared text. The body lives in the
// body store, keyed by ID.
type Document struct {
	ID        int64        `json:"id" bson:"_id"`
	Name      string       `json:"name" bson:"name"`
	CreatorID int64        `json:"-" bson:"creatorId"`
	Creator   *models.User `json:"creator" bson:"-"`
	CreatedAt time.Time    `json:"-" bson:"createdAt"`
	UpdatedAt time.Time    `json:"-" bson:"updatedAt"`
}

// Update is the full snapshot exchanged with editors: the stored name and
// body plus the creator's username.
type Update struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Creator string `json:"creator"`
}

// RenameRequest asks for a document's display name to change.
type RenameRequest struct {
	ID      int64  `json:"id"`
	NewName string `json:"newName"`
}

// CreateRequest is the body of POST /api/newDocument.
type CreateRequest struct {
	Name      string `json:"name" binding:"required"`
	CreatorID int64  `json:"creatorId"`
}

// Topic names used for document events.
const (
	TopicRename = "/topic/renameDocument"
	TopicNew    = "/topic/newDocument"
	TopicDelete = "/topic/deleteDocument"
)

// UpdatesTopic is where content snapshots for one document are published.
func UpdatesTopic(id int64) string {
	return "/topic/updates/" + strconv.FormatInt(id, 10)
}

// ActiveUsersTopic is where presence snapshots for one document are published.
func ActiveUsersTopic(id int64) string {
	return "/topic/activeUsers/" + strconv.FormatInt(id, 10)
}

// ParseID parses a path or destination segment as a document id.
func ParseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
