package path

import (
	"fmt"
	"strings"

	ierr "go-firestore-ratings/internal/errors"
)

const (
	// collection names, part of the external contract
	entitiesNode   string = "entities"
	ratingsNode    string = "ratings"
	reviewsNode    string = "reviews"
	repliesNode    string = "replies"
	forumPostsNode string = "forumPosts"
	commentsNode   string = "comments"

	separator string = "/"
)

// Collection is a resolved collection path such as "entities/e1/reviews".
// The zero value is not a valid collection.
type Collection struct {
	p string
}

// Doc addresses a single document inside a Collection.
type Doc struct {
	parent Collection
	id     string
}

func (c Collection) String() string {
	return c.p
}

func (c Collection) IsZero() bool {
	return c.p == ""
}

// Doc returns the document with the given id inside c.
func (c Collection) Doc(id string) Doc {
	return Doc{parent: c, id: id}
}

func (d Doc) ID() string {
	return d.id
}

func (d Doc) Parent() Collection {
	return d.parent
}

func (d Doc) IsZero() bool {
	return d.parent.IsZero() && d.id == ""
}

func (d Doc) String() string {
	return d.parent.p + separator + d.id
}

// Validate reports whether every segment of c is usable as a path segment.
func (c Collection) Validate() error {
	if c.IsZero() {
		return fmt.Errorf("validate path: %w, empty collection", ierr.InvalidInput)
	}
	segs := strings.Split(c.p, separator)
	// collections sit at odd depths: coll, coll/doc/coll, ...
	if len(segs)%2 == 0 {
		return fmt.Errorf("validate path: %w, %s is a document path", ierr.InvalidInput, c.p)
	}
	for i, seg := range segs {
		if err := validSegment(seg); err != nil {
			return fmt.Errorf("validate path: %w, segment %d of %s", err, i, c.p)
		}
	}
	return nil
}

// Validate reports whether every id segment of d is usable as a document id.
func (d Doc) Validate() error {
	if err := d.parent.Validate(); err != nil {
		return err
	}
	if err := validSegment(d.id); err != nil {
		return fmt.Errorf("validate path: %w, id of %s", err, d.String())
	}
	return nil
}

func validSegment(seg string) error {
	if seg == "" || seg == "." || seg == ".." || strings.Contains(seg, separator) {
		return ierr.InvalidInput
	}
	if strings.HasPrefix(seg, "__") && strings.HasSuffix(seg, "__") {
		return ierr.InvalidInput
	}
	return nil
}

func sub(d Doc, name string) Collection {
	return Collection{p: d.String() + separator + name}
}

// Entities is the root collection of rated entities.
func Entities() Collection {
	return Collection{p: entitiesNode}
}

// ForumPosts is the root collection of forum posts.
func ForumPosts() Collection {
	return Collection{p: forumPostsNode}
}

// Entity is an entities/{entityId} document.
type Entity struct {
	doc Doc
}

func EntityOf(id string) Entity {
	return Entity{doc: Entities().Doc(id)}
}

func (e Entity) ID() string {
	return e.doc.id
}

func (e Entity) Doc() Doc {
	return e.doc
}

// Ratings is entities/{entityId}/ratings.
func (e Entity) Ratings() Collection {
	return sub(e.doc, ratingsNode)
}

// Rating is the rating record of one user, entities/{entityId}/ratings/{userId}.
func (e Entity) Rating(userID string) Doc {
	return e.Ratings().Doc(userID)
}

func (e Entity) Reviews() Container {
	return Container{coll: sub(e.doc, reviewsNode)}
}

func (e Entity) Review(id string) TopLevel {
	return e.Reviews().Item(id)
}

// ForumPost is a forumPosts/{postId} document.
type ForumPost struct {
	doc Doc
}

func ForumPostOf(id string) ForumPost {
	return ForumPost{doc: ForumPosts().Doc(id)}
}

func (p ForumPost) ID() string {
	return p.doc.id
}

func (p ForumPost) Doc() Doc {
	return p.doc
}

func (p ForumPost) Comments() Container {
	return Container{coll: sub(p.doc, commentsNode)}
}

func (p ForumPost) Comment(id string) TopLevel {
	return p.Comments().Item(id)
}

// Container holds top-level thread items: an entity's reviews or a forum post's comments.
type Container struct {
	coll Collection
}

func (c Container) Collection() Collection {
	return c.coll
}

func (c Container) Item(id string) TopLevel {
	return TopLevel{doc: c.coll.Doc(id)}
}

// TopLevel is a review or a comment. Only top-level items own a replies collection,
// replies are plain documents and cannot nest further.
type TopLevel struct {
	doc Doc
}

func (t TopLevel) ID() string {
	return t.doc.id
}

func (t TopLevel) Doc() Doc {
	return t.doc
}

func (t TopLevel) Container() Container {
	return Container{coll: t.doc.parent}
}

func (t TopLevel) Replies() Collection {
	return sub(t.doc, repliesNode)
}

func (t TopLevel) Reply(id string) Doc {
	return t.Replies().Doc(id)
}
