package model

import "time"

const (
	IdFieldPath                string = "id"
	AuthorIdFieldPath          string = "authorId"
	AuthorDisplayNameFieldPath string = "authorDisplayName"
	TitleFieldPath             string = "title"
	BodyFieldPath              string = "body"
	ViewedWorksFieldPath       string = "viewedWorks"
	ParentIdFieldPath          string = "parentId"
	CreatedAtFieldPath         string = "createdAt"
)

// Content is the shape shared by reviews, comments, forum posts and replies.
// ParentId is only set on replies.
type Content struct {
	Id                string    `json:"id"`
	AuthorId          string    `json:"authorId"`
	AuthorDisplayName string    `json:"authorDisplayName"`
	Title             string    `json:"title,omitempty"`
	Body              string    `json:"body"`
	ViewedWorks       string    `json:"viewedWorks,omitempty"`
	ParentId          string    `json:"parentId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	Votable
}

func (c Content) Fields() map[string]interface{} {
	fields := c.Votable.Fields()
	fields[IdFieldPath] = c.Id
	fields[AuthorIdFieldPath] = c.AuthorId
	fields[AuthorDisplayNameFieldPath] = c.AuthorDisplayName
	fields[BodyFieldPath] = c.Body
	fields[CreatedAtFieldPath] = c.CreatedAt

	if c.Title != "" {
		fields[TitleFieldPath] = c.Title
	}
	if c.ViewedWorks != "" {
		fields[ViewedWorksFieldPath] = c.ViewedWorks
	}
	if c.ParentId != "" {
		fields[ParentIdFieldPath] = c.ParentId
	}
	return fields
}
